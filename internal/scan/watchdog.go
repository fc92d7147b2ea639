package scan

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// ErrReadStalled is wrapped by read errors on files that delivered no bytes
// for longer than Options.ReadTimeout.
var ErrReadStalled = errors.New("read stalled")

// readWatchdog closes a set of files once no read on them has made progress
// for timeout. Every read that returns data pushes the deadline back, so a
// slow file that keeps delivering bytes is never interrupted.
// A zero timeout disables the watchdog.
type readWatchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func watchReads(timeout time.Duration, files ...io.Closer) *readWatchdog {
	w := &readWatchdog{timeout: timeout}
	if timeout <= 0 {
		return w
	}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		for _, f := range files {
			f.Close()
		}
	})
	return w
}

// reader returns r with every successful read re-arming the deadline.
func (w *readWatchdog) reader(r io.Reader) io.Reader {
	if w.timer == nil {
		return r
	}
	return watchedReader{r: r, w: w}
}

func (w *readWatchdog) progress() {
	if !w.fired.Load() {
		w.timer.Reset(w.timeout)
	}
}

func (w *readWatchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

// stalled reports whether the watchdog closed the files.
func (w *readWatchdog) stalled() bool { return w.fired.Load() }

// err describes the stall for path.
func (w *readWatchdog) err(path string) error {
	return &IOError{Path: path, Op: "read", Err: fmt.Errorf("%w: no data for %s", ErrReadStalled, w.timeout)}
}

type watchedReader struct {
	r io.Reader
	w *readWatchdog
}

func (wr watchedReader) Read(p []byte) (int, error) {
	n, err := wr.r.Read(p)
	if n > 0 {
		wr.w.progress()
	}
	return n, err
}

// isTimeout reports whether err was caused by a stalled read.
func isTimeout(err error) bool {
	return errors.Is(err, ErrReadStalled)
}
