package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAccumulator(t *testing.T, cfg AccumulatorConfig, paths []string) []FileRecord {
	t.Helper()
	in := make(chan string, len(paths))
	for _, p := range paths {
		in <- p
	}
	close(in)
	out := make(chan FileRecord, len(paths))
	RunSizeAccumulator(context.Background(), cfg, in, out)
	var got []FileRecord
	for r := range out {
		got = append(got, r)
	}
	return got
}

func TestSizeAccumulatorHoldsBackUniqueSizes(t *testing.T) {
	fsys := memTree(t, map[string]string{
		"/r/a": "12345",
		"/r/b": "abc",
		"/r/c": "54321",
		"/r/d": "xyzzy",
		"/r/e": "",
	})
	var unique, eligible []FileRecord
	progress := &Progress{}
	cfg := AccumulatorConfig{
		FS: fsys, Root: "/r", MinFileSize: 1, SkipUniqueSizes: true,
		Progress: progress, Report: noErrors(t),
		OnRecord: func(r FileRecord) { eligible = append(eligible, r) },
		OnUnique: func(r FileRecord) { unique = append(unique, r) },
	}

	got := runAccumulator(t, cfg, []string{"/r/a", "/r/b", "/r/c", "/r/d", "/r/e"})

	var paths []string
	for _, r := range got {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"/r/a", "/r/c", "/r/d"}, paths)
	assert.EqualValues(t, 1, got[0].Seq)
	assert.EqualValues(t, 3, got[1].Seq)
	assert.EqualValues(t, 4, got[2].Seq)

	require.Len(t, unique, 1)
	assert.Equal(t, "/r/b", unique[0].Path)
	assert.Len(t, eligible, 4)
	assert.EqualValues(t, 5, progress.FilesDiscovered.Load())
	assert.EqualValues(t, 4, progress.FilesEligible.Load())
}

func TestSizeAccumulatorPassThrough(t *testing.T) {
	fsys := memTree(t, map[string]string{"/r/a": "1", "/r/b": "22", "/r/e": ""})
	cfg := AccumulatorConfig{FS: fsys, Root: "/r", MinFileSize: 0, Progress: &Progress{}, Report: noErrors(t)}

	got := runAccumulator(t, cfg, []string{"/r/a", "/r/b", "/r/e"})
	assert.Len(t, got, 3)
}

func TestSizeAccumulatorReportsStatErrors(t *testing.T) {
	fsys := vanishingFs{Fs: memTree(t, map[string]string{"/r/a": "1", "/r/b": "1"}), gone: map[string]bool{"/r/a": true}}
	skips := &skipRecorder{}
	cfg := AccumulatorConfig{FS: fsys, Root: "/r", MinFileSize: 1, Progress: &Progress{}, Report: skips.report}

	got := runAccumulator(t, cfg, []string{"/r/a", "/r/b"})
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].Seq, "seq follows enumeration even across skips")
	require.Len(t, skips.skips, 1)
	assert.Equal(t, StageStat, skips.skips[0].Stage)
	var nf *NotFoundError
	assert.ErrorAs(t, skips.skips[0].Err, &nf)
}
