package scan

import (
	"time"

	"github.com/eargollo/dupfind/internal/filetype"
)

// Stats summarises one scan run.
type Stats struct {
	FilesDiscovered    int64         `json:"files_discovered"     yaml:"files_discovered"`
	FilesEligible      int64         `json:"files_eligible"       yaml:"files_eligible"`
	FilesFingerprinted int64         `json:"files_fingerprinted"  yaml:"files_fingerprinted"`
	UniqueSizeSkipped  int64         `json:"unique_size_skipped"  yaml:"unique_size_skipped"`
	Candidates         int64         `json:"candidates"           yaml:"candidates"`
	Confirmed          int64         `json:"confirmed"            yaml:"confirmed"`
	Collisions         int64         `json:"collisions"           yaml:"collisions"`
	Skipped            int64         `json:"skipped"              yaml:"skipped"`
	BytesRead          int64         `json:"bytes_read"           yaml:"bytes_read"`
	ReclaimableBytes   int64         `json:"reclaimable_bytes"    yaml:"reclaimable_bytes"`
	Elapsed            time.Duration `json:"elapsed_ns"           yaml:"elapsed"`
}

// Result is the output of a scan. It is owned by the caller.
type Result struct {
	Root      string          `json:"root"       yaml:"root"`
	Pattern   string          `json:"pattern"    yaml:"pattern"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Pairs     []ConfirmedPair `json:"pairs"      yaml:"pairs"`
	Skipped   []Skip          `json:"skipped"    yaml:"skipped"`
	Stats     Stats           `json:"stats"      yaml:"stats"`

	records []FileRecord
}

// GroupPairs folds confirmed pairs into N-way groups keyed by their
// original. Groups appear in the order their first pair appears; members
// keep pair order.
func GroupPairs(pairs []ConfirmedPair) []DuplicateGroup {
	var groups []DuplicateGroup
	pos := make(map[string]int)
	for _, p := range pairs {
		i, ok := pos[p.Original.Path]
		if !ok {
			i = len(groups)
			pos[p.Original.Path] = i
			groups = append(groups, DuplicateGroup{Original: p.Original, Size: p.Original.Size})
		}
		groups[i].Duplicates = append(groups[i].Duplicates, p.Duplicate)
		groups[i].Reclaimable += p.Duplicate.Size
	}
	return groups
}

// Groups returns the confirmed pairs as N-way duplicate groups.
func (r *Result) Groups() []DuplicateGroup {
	return GroupPairs(r.Pairs)
}

// TypeSummary counts eligible files per content category. Files of unknown
// type are left out.
func (r *Result) TypeSummary() map[filetype.Category]int {
	out := make(map[filetype.Category]int)
	for _, rec := range r.records {
		if rec.Type == filetype.Unknown {
			continue
		}
		out[rec.Type]++
	}
	return out
}
