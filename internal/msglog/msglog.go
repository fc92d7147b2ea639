// Package msglog writes the human-readable transcript of a scan: start,
// every duplicate found, completion and elapsed time. Each writer goes to
// the screen, to a timestamped log file, or to both.
package msglog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Modes.
const (
	ScreenAndFile = "screen_and_file"
	Screen        = "screen"
	File          = "file"
)

// fileTimeLayout renders YYYYMMDD_HHMMSS.ffffff.
const fileTimeLayout = "20060102_150405.000000"

// Options configures every writer opened by a Registry.
type Options struct {
	Dir            string
	Mode           string
	FlushThreshold int
	// Screen receives screen output; nil means os.Stdout.
	Screen io.Writer
	// Now stamps file names; nil means time.Now.
	Now func() time.Time
}

// Writer is one message log. It implements scan.MessageSink and is safe for
// concurrent use.
type Writer struct {
	name string
	path string

	mu        sync.Mutex
	logger    *zap.Logger
	file      *os.File
	buffered  *zapcore.BufferedWriteSyncer
	count     int
	threshold int
	closed    bool
}

func newWriter(name, prefix string, opts Options) (*Writer, error) {
	if opts.FlushThreshold < 1 {
		opts.FlushThreshold = 100
	}
	if opts.Screen == nil {
		opts.Screen = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		ConsoleSeparator: " ",
	})

	w := &Writer{name: name, threshold: opts.FlushThreshold}
	var cores []zapcore.Core
	switch opts.Mode {
	case ScreenAndFile, "":
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(opts.Screen), zapcore.InfoLevel))
		fallthrough
	case File:
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create message log dir %q: %w", opts.Dir, err)
		}
		w.path = filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", prefix, opts.Now().Format(fileTimeLayout)))
		f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open message log %q: %w", w.path, err)
		}
		w.file = f
		// Flushing is driven by the message count; the interval only
		// bounds how stale the file can get between counts.
		w.buffered = &zapcore.BufferedWriteSyncer{WS: zapcore.AddSync(f), Size: 256 * 1024, FlushInterval: time.Minute}
		cores = append(cores, zapcore.NewCore(enc.Clone(), w.buffered, zapcore.InfoLevel))
	case Screen:
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(opts.Screen), zapcore.InfoLevel))
	default:
		return nil, fmt.Errorf("unknown message log mode %q", opts.Mode)
	}

	w.logger = zap.New(zapcore.NewTee(cores...))
	w.logger.Info(fmt.Sprintf("message writer [%s] starting. . .", name))
	return w, nil
}

// Name returns the registry name.
func (w *Writer) Name() string { return w.name }

// Path returns the log file path, or "" in screen mode.
func (w *Writer) Path() string { return w.path }

// Printf writes one message. Messages after Close are dropped.
func (w *Writer) Printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.logger.Info(fmt.Sprintf(format, args...))
	w.count++
	if w.count%w.threshold == 0 {
		_ = w.logger.Sync()
	}
}

// Close writes the closing line, flushes and closes the file. Calling Close
// again is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.logger.Info(fmt.Sprintf("message writer [%s] closing. . .", w.name))

	var errs []error
	if w.buffered != nil {
		errs = append(errs, w.buffered.Stop())
	}
	if w.file != nil {
		errs = append(errs, w.file.Close())
	}
	return errors.Join(errs...)
}

// Registry hands out one Writer per name.
type Registry struct {
	opts Options

	mu      sync.Mutex
	writers map[string]*Writer
	order   []string
}

// NewRegistry returns an empty Registry whose writers use opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, writers: make(map[string]*Writer)}
}

// Open returns the active writer registered as name, creating it with the
// given file prefix if there is none. A second Open of the same name returns
// the first writer; prefix is ignored then.
func (r *Registry) Open(name, prefix string) (*Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.writers[name]; ok {
		return w, nil
	}
	w, err := newWriter(name, prefix, r.opts)
	if err != nil {
		return nil, err
	}
	r.writers[name] = w
	r.order = append(r.order, name)
	return w, nil
}

// Release closes the writer registered as name and forgets it, so the next
// Open of name starts a new log file. Releasing an unknown name is a no-op.
func (r *Registry) Release(name string) error {
	r.mu.Lock()
	w, ok := r.writers[name]
	if ok {
		delete(r.writers, name)
		r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return w.Close()
}

// Close closes every active writer in the order they were opened and
// empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, name := range r.order {
		errs = append(errs, r.writers[name].Close())
	}
	r.writers = make(map[string]*Writer)
	r.order = nil
	return errors.Join(errs...)
}
