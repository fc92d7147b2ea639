package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirQueueReturnsEveryDirectory(t *testing.T) {
	const n = 5000
	q := newDirQueue()
	var want []string
	for i := 0; i < n; i++ {
		d := fmt.Sprintf("dir%04d", i)
		want = append(want, d)
		q.add(d)
	}

	var got []string
	for {
		d, ok := q.next()
		if !ok {
			break
		}
		got = append(got, d)
		q.finish()
	}
	assert.Equal(t, want, got)
}

func TestDirQueueCompacts(t *testing.T) {
	const batch, rounds = 2000, 5
	q := newDirQueue()
	for r := 0; r < rounds; r++ {
		for i := 0; i < batch; i++ {
			q.add(fmt.Sprintf("d%d_%04d", r, i))
		}
		for i := 0; i < batch; i++ {
			_, ok := q.next()
			require.True(t, ok, "queue shut while directories were outstanding")
			q.finish()
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Equal(t, q.head, len(q.items))
	assert.Less(t, cap(q.items), batch*rounds)
}

func TestDirQueueCloseWakesWaiters(t *testing.T) {
	q := newDirQueue()
	q.add("/r")
	_, ok := q.next()
	require.True(t, ok)

	done := make(chan bool)
	go func() {
		_, ok := q.next()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.close()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("next did not wake after close")
	}
}

func collect(t *testing.T, fsys afero.Fs, root string, cfg WalkConfig, report ErrorReporter) ([]string, error) {
	t.Helper()
	out := make(chan string, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- Walk(context.Background(), fsys, root, cfg, out, report) }()
	var got []string
	for p := range out {
		got = append(got, p)
	}
	return got, <-errCh
}

// TestWalkFindsAllFiles creates a tree of 15 files across 3 subdirs and
// verifies Walk returns all of them.
func TestWalkFindsAllFiles(t *testing.T) {
	files := map[string]string{}
	var want []string
	for i := 0; i < 3; i++ {
		for j := 0; j < 5; j++ {
			p := fmt.Sprintf("/root/sub%d/file%d.txt", i, j)
			files[p] = "hello"
			want = append(want, p)
		}
	}
	fsys := memTree(t, files)

	got, err := collect(t, fsys, "/root", WalkConfig{Workers: 4}, noErrors(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got)
}

func TestWalkSingleWorkerIsBreadthFirstNameOrder(t *testing.T) {
	fsys := memTree(t, map[string]string{
		"/r/b.txt":     "1",
		"/r/a.txt":     "2",
		"/r/z/c.txt":   "3",
		"/r/m/d.txt":   "4",
		"/r/m/n/e.txt": "5",
	})

	got, err := collect(t, fsys, "/r", WalkConfig{Workers: 1}, noErrors(t))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/r/a.txt", "/r/b.txt", "/r/m/d.txt", "/r/z/c.txt", "/r/m/n/e.txt",
	}, got)
}

func TestWalkExcludesDirs(t *testing.T) {
	fsys := memTree(t, map[string]string{
		"/r/keep/a.txt":        "a",
		"/r/node_modules/b.js": "b",
		"/r/deep/cache/c.txt":  "c",
		"/r/d.txt":             "d",
	})

	got, err := collect(t, fsys, "/r", WalkConfig{
		Workers:     2,
		ExcludeDirs: []string{"node_modules", "/r/deep/cache"},
	}, noErrors(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/r/keep/a.txt", "/r/d.txt"}, got)
}

func TestWalkPattern(t *testing.T) {
	fsys := memTree(t, map[string]string{
		"/r/a.txt":       "a",
		"/r/sub/b.txt":   "b",
		"/r/sub/c.jpg":   "c",
		"/r/other/d.txt": "d",
	})

	t.Run("basename at any depth", func(t *testing.T) {
		m, err := NewMatcher("*.txt")
		require.NoError(t, err)
		got, err := collect(t, fsys, "/r", WalkConfig{Match: m}, noErrors(t))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"/r/a.txt", "/r/sub/b.txt", "/r/other/d.txt"}, got)
	})

	t.Run("relative path", func(t *testing.T) {
		m, err := NewMatcher("sub/**")
		require.NoError(t, err)
		got, err := collect(t, fsys, "/r", WalkConfig{Match: m}, noErrors(t))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"/r/sub/b.txt", "/r/sub/c.jpg"}, got)
	})
}

func TestNewMatcherRejectsInvalidPattern(t *testing.T) {
	_, err := NewMatcher("[abc")
	assert.Error(t, err)
}

func TestWalkMissingRootIsAccessError(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_, err := collect(t, fsys, "/nope", WalkConfig{}, noErrors(t))

	var accessErr *AccessError
	require.True(t, errors.As(err, &accessErr), "got %v", err)
	assert.Equal(t, "/nope", accessErr.Root)
}

func TestWalkFileRootIsAccessError(t *testing.T) {
	fsys := memTree(t, map[string]string{"/file.txt": "x"})
	_, err := collect(t, fsys, "/file.txt", WalkConfig{}, noErrors(t))

	var accessErr *AccessError
	assert.True(t, errors.As(err, &accessErr), "got %v", err)
}

func TestWalkSkipsUnreadableSubdir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := diskTree(t, map[string]string{
		"ok/a.txt":     "a",
		"locked/b.txt": "b",
	})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	rec := &skipRecorder{}
	got, err := collect(t, afero.NewOsFs(), root, WalkConfig{Workers: 2}, rec.report)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "ok", "a.txt")}, got)
	require.Len(t, rec.skips, 1)
	assert.Equal(t, locked, rec.skips[0].Path)
	assert.Equal(t, StageWalk, rec.skips[0].Stage)
}

func TestWalkSymlinks(t *testing.T) {
	root := diskTree(t, map[string]string{"real/a.txt": "content"})
	link := filepath.Join(root, "link.txt")
	if err := os.Symlink(filepath.Join(root, "real", "a.txt"), link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "broken")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "dirlink")))

	got, err := collect(t, afero.NewOsFs(), root, WalkConfig{}, noErrors(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{link, filepath.Join(root, "real", "a.txt")}, got)

	got, err = collect(t, afero.NewOsFs(), root, WalkConfig{SkipSymlinks: true}, noErrors(t))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "real", "a.txt")}, got)
}

// TestWalkCancellation verifies Walk returns cleanly after ctx is cancelled.
func TestWalkCancellation(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 200; i++ {
		files[fmt.Sprintf("/r/f%d.txt", i)] = "data"
	}
	fsys := memTree(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string, 8)

	done := make(chan error, 1)
	go func() { done <- Walk(ctx, fsys, "/r", WalkConfig{Workers: 2}, out, noErrors(t)) }()

	cancel()
	for range out {
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Walk did not return after context cancel")
	}
}
