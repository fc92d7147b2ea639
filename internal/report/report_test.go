package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/eargollo/dupfind/internal/filetype"
	"github.com/eargollo/dupfind/internal/scan"
	"github.com/eargollo/dupfind/internal/store"
)

func sampleResult() *scan.Result {
	a := scan.FileRecord{Seq: 1, Path: "/r/a.txt", Size: 2048, Type: filetype.Text}
	b := scan.FileRecord{Seq: 2, Path: "/r/b.txt", Size: 2048, Type: filetype.Text}
	c := scan.FileRecord{Seq: 3, Path: "/r/c.txt", Size: 2048, Type: filetype.Text}
	return &scan.Result{
		Root:    "/r",
		Pattern: "**",
		Pairs:   []scan.ConfirmedPair{{Original: a, Duplicate: b}, {Original: a, Duplicate: c}},
		Skipped: []scan.Skip{{Path: "/r/locked", Stage: scan.StageFingerprint, Err: errors.New("permission denied")}},
		Stats: scan.Stats{
			FilesDiscovered:    1200,
			FilesFingerprinted: 3,
			Confirmed:          2,
			Skipped:            1,
			ReclaimableBytes:   4096,
			Elapsed:            1500 * time.Millisecond,
		},
	}
}

func TestTextPairs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Text, sampleResult(), Options{}))
	out := buf.String()

	sep := " " + strings.Repeat("-", 60)
	assert.True(t, strings.HasPrefix(out, "2 Duplicate(s) Found\n"+sep+"\nDuplicate\n /r/b.txt\n /r/a.txt\n"+sep+"\n"), out)
	assert.Contains(t, out, "1 File(s) Skipped\n [fingerprint] /r/locked: permission denied\n")
	assert.Contains(t, out, "1,200 file(s) scanned")
	assert.Contains(t, out, "4.1 kB reclaimable")
	assert.Contains(t, out, "elapsed 1.5s")
	assert.NotContains(t, out, "\x1b[", "no colour unless asked")
}

func TestTextNoDuplicates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Text, &scan.Result{Root: "/r"}, Options{}))
	assert.True(t, strings.HasPrefix(buf.String(), "No duplicates found\n"))
	assert.NotContains(t, buf.String(), "Skipped")
}

func TestTextGroups(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Text, sampleResult(), Options{Groups: true}))
	out := buf.String()
	assert.Contains(t, out, "1 Duplicate Group(s) Found")
	assert.Contains(t, out, "Original (2.0 kB, 2 duplicate(s), 4.1 kB reclaimable)\n /r/a.txt\n /r/b.txt\n /r/c.txt\n")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, sampleResult(), Options{}))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Pairs, 2)
	assert.Equal(t, PairDoc{Original: "/r/a.txt", Duplicate: "/r/b.txt", Size: 2048, Type: "text"}, doc.Pairs[0])
	assert.Nil(t, doc.Groups)
	require.Len(t, doc.Skipped, 1)
	assert.Equal(t, "permission denied", doc.Skipped[0].Error)
	assert.EqualValues(t, 2, doc.Stats.Confirmed)
}

func TestYAMLGroups(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, YAML, sampleResult(), Options{Groups: true}))

	var doc struct {
		Groups []GroupDoc `yaml:"groups"`
		Pairs  []PairDoc  `yaml:"pairs"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Groups, 1)
	assert.Equal(t, []string{"/r/b.txt", "/r/c.txt"}, doc.Groups[0].Duplicates)
	assert.Empty(t, doc.Pairs)
}

func TestUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xml", sampleResult(), Options{}))
	assert.Error(t, WriteScans(&bytes.Buffer{}, "xml", nil))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestWriteScans(t *testing.T) {
	finished := time.Now()
	scans := []store.Scan{{
		ID: 7, Root: "/data", Status: scan.StatusCompleted, TriggeredBy: "schedule",
		StartedAt: time.Now().Add(-time.Hour), FinishedAt: &finished,
		Stats: scan.Stats{FilesDiscovered: 12345, Confirmed: 3, ReclaimableBytes: 1 << 20},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteScans(&buf, Text, scans))
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "1.0 MB")

	buf.Reset()
	require.NoError(t, WriteScans(&buf, Text, nil))
	assert.Equal(t, "No scans recorded\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteScans(&buf, JSON, scans))
	var back []store.Scan
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, int64(7), back[0].ID)
}

func TestWriteStoredPairs(t *testing.T) {
	sc := store.Scan{ID: 3, Root: "/r", Status: scan.StatusCompleted, StartedAt: time.Now()}
	pairs := []store.Pair{
		{OriginalPath: "/r/a", DuplicatePath: "/r/b", Size: 10},
		{OriginalPath: "/r/a", DuplicatePath: "/r/c", Size: 10},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStoredPairs(&buf, Text, sc, pairs, Options{}))
	assert.Contains(t, buf.String(), "2 Duplicate(s) Found")
	assert.Contains(t, buf.String(), "Duplicate\n /r/c\n /r/a\n")

	buf.Reset()
	require.NoError(t, WriteStoredPairs(&buf, JSON, sc, pairs, Options{Groups: true}))
	var groups []store.Group
	require.NoError(t, json.Unmarshal(buf.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.EqualValues(t, 20, groups[0].Reclaimable)
}
