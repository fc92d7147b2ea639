package scan

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Scanner is one scan session. It owns the FileRecords of its last run;
// nothing is kept in package-level state.
type Scanner struct {
	fsys    afero.Fs
	opts    Options
	newHash func() hash.Hash
	logger  *zap.Logger

	mu      sync.Mutex
	records []FileRecord
}

// Option customises a Scanner.
type Option func(*Scanner)

// WithLogger sets the operational logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithHashFunc overrides the digest named by Options.Hash.
func WithHashFunc(fn func() hash.Hash) Option {
	return func(s *Scanner) { s.newHash = fn }
}

// New creates a Scanner over fsys. Use afero.NewOsFs() for the real disk.
func New(fsys afero.Fs, opts Options, options ...Option) *Scanner {
	s := &Scanner{fsys: fsys, opts: opts.withFallbacks(), logger: zap.NewNop()}
	for _, o := range options {
		o(s)
	}
	return s
}

// Options returns the options the scanner runs with.
func (s *Scanner) Options() Options { return s.opts }

// Records returns the eligible records described by the last run, in Seq
// order.
func (s *Scanner) Records() []FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

const bufSize = 1000

// Run executes the whole pipeline and blocks until it finishes.
//
// progress receives one Tick per file processed during fingerprinting and a
// single Close when Run returns; when it is a *Progress its counters are
// updated as well. msgs receives the status lines. Either may be nil.
//
// A missing or unreadable root returns *AccessError. Per-file failures never
// abort the scan; they are listed in Result.Skipped.
func (s *Scanner) Run(ctx context.Context, progress ProgressSink, msgs MessageSink) (*Result, error) {
	counters, ok := progress.(*Progress)
	if !ok {
		counters = &Progress{}
		if progress != nil {
			progress = multiSink{counters, progress}
		} else {
			progress = counters
		}
	}
	defer progress.Close()
	if msgs == nil {
		msgs = nopMessages{}
	}

	opts := s.opts
	started := time.Now()
	res := &Result{Root: opts.Root, Pattern: opts.Pattern, StartedAt: started}

	matcher, err := NewMatcher(opts.Pattern)
	if err != nil {
		return nil, err
	}
	newHash := s.newHash
	if newHash == nil {
		if newHash, err = HashFunc(opts.Hash); err != nil {
			return nil, err
		}
	}

	msgs.Printf("Scanning for duplicate files in %s (pattern %q, chunk size %d, min file size %d)",
		opts.Root, opts.Pattern, opts.ChunkSize, opts.MinFileSize)
	s.logger.Info("scan started",
		zap.String("root", opts.Root),
		zap.String("pattern", opts.Pattern),
		zap.String("hash", opts.Hash),
		zap.Int("workers", opts.Workers))

	var skipMu sync.Mutex
	report := func(path, stage string, err error) {
		counters.Errors.Add(1)
		s.logger.Warn("file skipped", zap.String("path", path), zap.String("stage", stage), zap.Error(err))
		skipMu.Lock()
		res.Skipped = append(res.Skipped, Skip{Path: path, Stage: stage, Err: err})
		skipMu.Unlock()
	}

	paths := make(chan string, bufSize)
	described := make(chan FileRecord, bufSize)
	ordered := make(chan FileRecord, bufSize)
	walkErr := make(chan error, 1)

	go func() {
		walkErr <- Walk(ctx, s.fsys, opts.Root, WalkConfig{
			Match:        matcher,
			ExcludeDirs:  opts.ExcludeDirs,
			Workers:      opts.Walkers,
			SkipSymlinks: opts.SkipSymlinks,
		}, paths, report)
	}()

	var records []FileRecord
	var uniqueSkipped int64
	RunSizeAccumulator(ctx, AccumulatorConfig{
		FS:              s.fsys,
		Root:            opts.Root,
		MinFileSize:     opts.MinFileSize,
		SkipUniqueSizes: opts.SkipUniqueSizes,
		Progress:        counters,
		Report:          report,
		OnRecord:        func(rec FileRecord) { records = append(records, rec) },
		OnUnique: func(FileRecord) {
			uniqueSkipped++
			progress.Tick()
		},
	}, paths, described)
	RunSizePriorityQueue(ctx, described, ordered)

	idx := NewIndex()
	<-RunFingerprinters(ctx, FingerprintConfig{
		FS:       s.fsys,
		Options:  opts,
		NewHash:  newHash,
		Index:    idx,
		Progress: counters,
		Sink:     progress,
		Report:   report,
		Logger:   s.logger,
	}, ordered)

	if err := <-walkErr; err != nil {
		var accessErr *AccessError
		if errors.As(err, &accessErr) {
			s.logger.Error("scan root not accessible", zap.String("root", opts.Root), zap.Error(err))
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	res.records = records

	candidates := idx.Candidates()
	counters.Candidates.Store(int64(len(candidates)))

	confirmed, collisions, err := Verify(ctx, s.fsys, candidates, opts, counters, report)
	if err != nil {
		return nil, err
	}
	counters.Confirmed.Store(int64(len(confirmed)))
	res.Pairs = confirmed

	for _, p := range confirmed {
		msgs.Printf("Duplicate found:\n %s\n %s", p.Duplicate.Path, p.Original.Path)
		res.Stats.ReclaimableBytes += p.Duplicate.Size
	}

	slices.SortStableFunc(res.Skipped, func(a, b Skip) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Stage, b.Stage)
	})

	res.Stats.FilesDiscovered = counters.FilesDiscovered.Load()
	res.Stats.FilesEligible = counters.FilesEligible.Load()
	res.Stats.FilesFingerprinted = counters.FilesFingerprinted.Load()
	res.Stats.UniqueSizeSkipped = uniqueSkipped
	res.Stats.Candidates = int64(len(candidates))
	res.Stats.Confirmed = int64(len(confirmed))
	res.Stats.Collisions = int64(collisions)
	res.Stats.Skipped = int64(len(res.Skipped))
	res.Stats.BytesRead = counters.BytesRead.Load()
	res.Stats.Elapsed = time.Since(started)

	msgs.Printf("Scanning complete. %d duplicate(s) found, %d file(s) skipped.", len(confirmed), len(res.Skipped))
	msgs.Printf("Elapsed time: %s", res.Stats.Elapsed.Round(time.Millisecond))
	s.logger.Info("scan finished",
		zap.Int64("files_discovered", res.Stats.FilesDiscovered),
		zap.Int64("candidates", res.Stats.Candidates),
		zap.Int64("confirmed", res.Stats.Confirmed),
		zap.Int64("skipped", res.Stats.Skipped),
		zap.Duration("elapsed", res.Stats.Elapsed))

	return res, nil
}

// String renders a one-line summary, handy for logs.
func (st Stats) String() string {
	return fmt.Sprintf("%d files, %d candidates, %d confirmed, %d skipped",
		st.FilesDiscovered, st.Candidates, st.Confirmed, st.Skipped)
}
