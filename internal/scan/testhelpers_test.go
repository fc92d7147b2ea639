package scan

import (
	"fmt"
	"hash"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// memTree builds an in-memory filesystem holding files (path → content).
func memTree(tb testing.TB, files map[string]string) afero.Fs {
	tb.Helper()
	fsys := afero.NewMemMapFs()
	for p, content := range files {
		require.NoError(tb, fsys.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(tb, afero.WriteFile(fsys, p, []byte(content), 0o644))
	}
	return fsys
}

// diskTree writes files below a fresh temp dir and returns its path.
func diskTree(tb testing.TB, files map[string]string) string {
	tb.Helper()
	root := tb.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(tb, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(tb, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

// noErrors is an ErrorReporter that fails the test if invoked.
func noErrors(tb testing.TB) ErrorReporter {
	return func(path, stage string, err error) {
		tb.Errorf("unexpected scan error: path=%q stage=%q err=%v", path, stage, err)
	}
}

// skipRecorder collects reported errors.
type skipRecorder struct {
	mu    sync.Mutex
	skips []Skip
}

func (r *skipRecorder) report(path, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips = append(r.skips, Skip{Path: path, Stage: stage, Err: err})
}

// deniedFs refuses to open the listed paths, as if their permissions had
// been revoked after enumeration. Stat keeps working.
type deniedFs struct {
	afero.Fs
	denied map[string]bool
}

func (d deniedFs) Open(name string) (afero.File, error) {
	if d.denied[name] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return d.Fs.Open(name)
}

func (d deniedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if d.denied[name] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return d.Fs.OpenFile(name, flag, perm)
}

// vanishingFs reports the listed paths as missing on Stat, as if they were
// deleted right after being enumerated.
type vanishingFs struct {
	afero.Fs
	gone map[string]bool
}

func (v vanishingFs) Stat(name string) (os.FileInfo, error) {
	if v.gone[name] {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return v.Fs.Stat(name)
}

// stallFs returns files whose reads block until the file is closed.
type stallFs struct {
	afero.Fs
}

func (s stallFs) Open(name string) (afero.File, error) {
	f, err := s.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	return &stallFile{File: f, closed: make(chan struct{})}, nil
}

type stallFile struct {
	afero.File
	once   sync.Once
	closed chan struct{}
}

func (f *stallFile) Read([]byte) (int, error) {
	<-f.closed
	return 0, os.ErrClosed
}

func (f *stallFile) Close() error {
	f.once.Do(func() { close(f.closed) })
	return f.File.Close()
}

// slowFs returns files that pause before every read but always make
// progress.
type slowFs struct {
	afero.Fs
	delay time.Duration
}

func (s slowFs) Open(name string) (afero.File, error) {
	f, err := s.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	return slowFile{File: f, delay: s.delay}, nil
}

type slowFile struct {
	afero.File
	delay time.Duration
}

func (f slowFile) Read(p []byte) (int, error) {
	time.Sleep(f.delay)
	return f.File.Read(p)
}

// reopenStallFs serves the first open of every path normally and stalls
// reads on every later open, so fingerprinting succeeds and verification
// hangs.
type reopenStallFs struct {
	afero.Fs
	mu     sync.Mutex
	opened map[string]int
}

func newReopenStallFs(fsys afero.Fs) *reopenStallFs {
	return &reopenStallFs{Fs: fsys, opened: make(map[string]int)}
}

func (s *reopenStallFs) Open(name string) (afero.File, error) {
	s.mu.Lock()
	s.opened[name]++
	n := s.opened[name]
	s.mu.Unlock()
	if n == 1 {
		return s.Fs.Open(name)
	}
	return stallFs{Fs: s.Fs}.Open(name)
}

// constHash gives every input the same digest, forcing fingerprint
// collisions between files of different content.
type constHash struct{}

func newConstHash() hash.Hash { return constHash{} }

func (constHash) Write(p []byte) (int, error) { return len(p), nil }
func (constHash) Sum(b []byte) []byte {
	return append(b, 0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
}
func (constHash) Reset()         {}
func (constHash) Size() int      { return 16 }
func (constHash) BlockSize() int { return 64 }

// tickSink counts ProgressSink calls.
type tickSink struct {
	mu     sync.Mutex
	ticks  int
	closes int
}

func (s *tickSink) Tick() {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()
}

func (s *tickSink) Close() {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
}

// messages records MessageSink lines.
type messages struct {
	mu    sync.Mutex
	lines []string
}

func (m *messages) Printf(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, fmt.Sprintf(format, args...))
}

// pairPaths returns each pair as [original, duplicate].
func pairPaths(pairs []ConfirmedPair) [][2]string {
	out := make([][2]string, 0, len(pairs))
	for _, p := range pairs {
		o, d := p.Paths()
		out = append(out, [2]string{o, d})
	}
	return out
}

// memberSet returns the sorted set of paths that appear in any pair.
func memberSet(pairs []ConfirmedPair) []string {
	set := map[string]struct{}{}
	for _, p := range pairs {
		set[p.Original.Path] = struct{}{}
		set[p.Duplicate.Path] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
