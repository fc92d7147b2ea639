package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// dirQueue hands directories to the walk workers. outstanding counts the
// directories that were added but not yet finished; the queue shuts itself
// once that count drops to zero, which is how every worker learns the tree
// is exhausted. Walk also calls shut when ctx is done, so workers parked in
// next wake up and exit on cancellation.
type dirQueue struct {
	mu          sync.Mutex
	ready       *sync.Cond
	items       []string
	head        int
	outstanding atomic.Int64
	shut        bool
}

func newDirQueue() *dirQueue {
	q := &dirQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// add queues dir and counts it as outstanding.
func (q *dirQueue) add(dir string) {
	q.outstanding.Add(1)
	q.mu.Lock()
	q.items = append(q.items, dir)
	q.mu.Unlock()
	q.ready.Signal()
}

// next waits for a directory. It returns false once the queue is shut and
// drained.
func (q *dirQueue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) && !q.shut {
		q.ready.Wait()
	}
	if q.head == len(q.items) {
		return "", false
	}
	dir := q.items[q.head]
	q.items[q.head] = ""
	q.head++
	if q.head >= 1024 && 2*q.head >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return dir, true
}

// finish marks one directory as fully listed. Its subdirectories must
// already have been added.
func (q *dirQueue) finish() {
	if q.outstanding.Add(-1) == 0 {
		q.close()
	}
}

// close shuts the queue and wakes every worker parked in next.
func (q *dirQueue) close() {
	q.mu.Lock()
	q.shut = true
	q.mu.Unlock()
	q.ready.Broadcast()
}

// Matcher selects which enumerated files are yielded.
type Matcher struct {
	pattern  string
	basename bool
}

// NewMatcher compiles a doublestar pattern. A pattern without "/" is matched
// against the file name at any depth; otherwise it is matched against the
// root-relative, slash-separated path. "" and "**" match everything.
func NewMatcher(pattern string) (Matcher, error) {
	if pattern == "" || pattern == "**" {
		return Matcher{}, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return Matcher{}, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	return Matcher{pattern: pattern, basename: !strings.Contains(pattern, "/")}, nil
}

// Match reports whether the file at rel (root-relative, slash-separated)
// is selected.
func (m Matcher) Match(rel string) bool {
	if m.pattern == "" {
		return true
	}
	name := rel
	if m.basename {
		name = path.Base(rel)
	}
	ok, err := doublestar.Match(m.pattern, name)
	return err == nil && ok
}

// WalkConfig holds the traversal knobs of one Walk call.
type WalkConfig struct {
	Match        Matcher
	ExcludeDirs  []string
	Workers      int
	SkipSymlinks bool
}

// excludeSet matches directories by cleaned absolute path or by base name.
type excludeSet map[string]struct{}

func newExcludeSet(dirs []string) excludeSet {
	s := make(excludeSet, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		s[filepath.Clean(d)] = struct{}{}
	}
	return s
}

func (s excludeSet) has(dir string) bool {
	if len(s) == 0 {
		return false
	}
	if _, ok := s[dir]; ok {
		return true
	}
	_, ok := s[filepath.Base(dir)]
	return ok
}

// CheckRoot verifies that root exists, is a directory and can be listed.
func CheckRoot(fsys afero.Fs, root string) error {
	info, err := fsys.Stat(root)
	if err != nil {
		return &AccessError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return &AccessError{Root: root, Err: errors.New("not a directory")}
	}
	f, err := fsys.Open(root)
	if err != nil {
		return &AccessError{Root: root, Err: err}
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return &AccessError{Root: root, Err: err}
	}
	return nil
}

// Walk traverses root using cfg.Workers goroutines and sends the path of
// every regular file selected by cfg.Match to out. Walk closes out when done.
// A root that cannot be listed returns *AccessError before anything is sent.
// Errors on individual entries are passed to report and skipped.
//
// With a single worker the traversal is breadth-first in name order and
// therefore repeatable; more workers make the order nondeterministic.
func Walk(ctx context.Context, fsys afero.Fs, root string, cfg WalkConfig, out chan<- string, report ErrorReporter) error {
	defer close(out)

	if err := CheckRoot(fsys, root); err != nil {
		return err
	}

	w := &walker{
		fsys:     fsys,
		root:     root,
		cfg:      cfg,
		excludes: newExcludeSet(cfg.ExcludeDirs),
		out:      out,
		report:   report,
	}

	q := newDirQueue()
	q.add(root)

	stop := context.AfterFunc(ctx, q.close)
	defer stop()

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.work(ctx, q)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

type walker struct {
	fsys     afero.Fs
	root     string
	cfg      WalkConfig
	excludes excludeSet
	out      chan<- string
	report   ErrorReporter
}

// work lists directories from q until it is shut, adding subdirectories
// back to q and sending selected files to out.
func (w *walker) work(ctx context.Context, q *dirQueue) {
	for {
		if ctx.Err() != nil {
			return
		}

		dir, ok := q.next()
		if !ok {
			return
		}

		entries, err := afero.ReadDir(w.fsys, dir)
		if err != nil {
			w.report(dir, StageWalk, err)
			q.finish()
			continue
		}

		for _, entry := range entries {
			p := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				if w.excludes.has(p) {
					continue
				}
				q.add(p)
				continue
			}

			if entry.Mode()&os.ModeSymlink != 0 {
				if w.cfg.SkipSymlinks {
					continue
				}
				target, err := w.fsys.Stat(p)
				if err != nil || !target.Mode().IsRegular() {
					// Broken links and links to directories are not files.
					continue
				}
			} else if !entry.Mode().IsRegular() {
				continue
			}

			if !w.cfg.Match.Match(relPath(w.root, p)) {
				continue
			}

			select {
			case <-ctx.Done():
				q.finish()
				return
			case w.out <- p:
			}
		}

		q.finish()
	}
}

// relPath returns p relative to root in slash form, or p itself when it is
// not below root.
func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
