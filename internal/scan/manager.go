package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned when a scan is started while one is in progress.
var ErrAlreadyRunning = errors.New("a scan is already in progress")

// ErrNoActiveScan is returned when cancel is called with no scan running.
var ErrNoActiveScan = errors.New("no scan is currently running")

// Scan statuses recorded for finished runs.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Recorder persists the lifecycle of managed scans.
type Recorder interface {
	BeginScan(ctx context.Context, opts Options, triggeredBy string, startedAt time.Time) (int64, error)
	FinishScan(ctx context.Context, id int64, status string, res *Result, runErr error, finishedAt time.Time) error
}

// MessageOpener opens the message sink of one managed scan. release is
// called once the scan has been recorded.
type MessageOpener func(scanID int64) (sink MessageSink, release func(), err error)

// ActiveScan holds live information about the running scan.
type ActiveScan struct {
	ID          int64
	Root        string
	StartedAt   time.Time
	TriggeredBy string
	Progress    *Progress
}

// Manager enforces a single-active-scan invariant and exposes start/cancel.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	fsys   afero.Fs
	opts   Options
	rec    Recorder
	logger *zap.Logger
	msgs   MessageOpener

	active   *ActiveScan
	cancelFn context.CancelFunc
	done     chan struct{}
}

// NewManager creates a Manager that runs scans over fsys with opts and
// records them with rec.
func NewManager(fsys afero.Fs, opts Options, rec Recorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{fsys: fsys, opts: opts, rec: rec, logger: logger}
}

// SetMessages makes every later scan write its transcript to the sink open
// returns. Without it managed scans have no message log.
func (m *Manager) SetMessages(open MessageOpener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = open
}

// Options returns the options used for future scans.
func (m *Manager) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// UpdateOptions replaces the options used for future scans.
// It does NOT affect a currently running scan.
func (m *Manager) UpdateOptions(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts
}

// Start launches an asynchronous scan. Returns an ActiveScan snapshot or
// ErrAlreadyRunning if a scan is already in progress.
func (m *Manager) Start(parentCtx context.Context, triggeredBy string) (*ActiveScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyRunning
	}

	// Create the history record now so the ID is available to the caller
	// before the goroutine begins executing.
	startedAt := time.Now()
	scanID, err := m.rec.BeginScan(parentCtx, m.opts, triggeredBy, startedAt)
	if err != nil {
		return nil, fmt.Errorf("create scan record: %w", err)
	}

	progress := &Progress{}
	scanCtx, cancel := context.WithCancel(parentCtx)

	active := &ActiveScan{
		ID:          scanID,
		Root:        m.opts.Root,
		StartedAt:   startedAt,
		TriggeredBy: triggeredBy,
		Progress:    progress,
	}
	m.active = active
	m.cancelFn = cancel
	m.done = make(chan struct{})

	scanner := New(m.fsys, m.opts, WithLogger(m.logger.With(zap.Int64("scan_id", scanID))))
	done := m.done
	msgs, release := m.openMessages(scanID)

	go func() {
		defer close(done)
		defer cancel()
		defer release()

		res, runErr := scanner.Run(scanCtx, progress, msgs)
		status := StatusCompleted
		switch {
		case errors.Is(runErr, context.Canceled):
			status = StatusCancelled
		case runErr != nil:
			status = StatusFailed
			m.logger.Error("scan run error", zap.Int64("scan_id", scanID), zap.Error(runErr))
		}

		// Background context so a cancelled scan is still recorded.
		if err := m.rec.FinishScan(context.Background(), scanID, status, res, runErr, time.Now()); err != nil {
			m.logger.Error("finalise scan record", zap.Int64("scan_id", scanID), zap.Error(err))
		}

		m.mu.Lock()
		m.active = nil
		m.cancelFn = nil
		m.mu.Unlock()
	}()

	return active, nil
}

// openMessages returns the message sink for scanID. A sink that fails to
// open is logged and the scan runs without one.
func (m *Manager) openMessages(scanID int64) (MessageSink, func()) {
	if m.msgs == nil {
		return nil, func() {}
	}
	sink, release, err := m.msgs(scanID)
	if err != nil {
		m.logger.Warn("open message log", zap.Int64("scan_id", scanID), zap.Error(err))
		return nil, func() {}
	}
	if release == nil {
		release = func() {}
	}
	return sink, release
}

// Cancel stops the currently running scan. Returns ErrNoActiveScan if idle.
func (m *Manager) Cancel() (*ActiveScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveScan
	}

	snap := *m.active
	m.cancelFn()
	return &snap, nil
}

// ActiveScan returns a snapshot of the running scan, or nil when idle.
func (m *Manager) ActiveScan() *ActiveScan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	snap := *m.active
	return &snap
}

// Wait blocks until the most recently started scan has been recorded, or
// ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
