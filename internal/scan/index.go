package scan

import (
	"context"
	"hash"
	"slices"
	"sync"

	"github.com/spf13/afero"
)

// Index maps a fingerprint to every record that produced it. It is safe for
// concurrent use by the fingerprint workers.
//
// The first member of a fingerprint is the record with the lowest Seq, not
// the one whose hash finished first, so the original of each pair is the
// same as in a sequential scan over the same enumeration order.
type Index struct {
	mu      sync.Mutex
	members map[string][]FileRecord
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{members: make(map[string][]FileRecord)}
}

// Add inserts a fingerprinted record. Records without a fingerprint are
// ignored.
func (x *Index) Add(rec FileRecord) {
	if rec.Fingerprint == nil {
		return
	}
	key := string(rec.Fingerprint)
	x.mu.Lock()
	x.members[key] = append(x.members[key], rec)
	x.mu.Unlock()
}

// Candidates returns one pair per later arrival of a fingerprint, each
// pointing at that fingerprint's first-seen record. Three files sharing a
// fingerprint give two pairs with the same Original. Pairs are ordered by
// the Seq of their Duplicate.
func (x *Index) Candidates() []CandidatePair {
	x.mu.Lock()
	defer x.mu.Unlock()

	var pairs []CandidatePair
	for _, m := range x.members {
		if len(m) < 2 {
			continue
		}
		sorted := slices.Clone(m)
		slices.SortStableFunc(sorted, bySeq)
		for _, rec := range sorted[1:] {
			pairs = append(pairs, CandidatePair{Duplicate: rec, Original: sorted[0]})
		}
	}
	slices.SortStableFunc(pairs, func(a, b CandidatePair) int { return bySeq(a.Duplicate, b.Duplicate) })
	return pairs
}

func bySeq(a, b FileRecord) int {
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	default:
		return 0
	}
}

// FindCandidates is the sequential form of the candidate stage: it
// fingerprints every eligible record in order and returns the candidate
// pairs. Records without a Seq take their position in records. Records
// that cannot be read are passed to report and skipped.
func FindCandidates(ctx context.Context, fsys afero.Fs, records []FileRecord, opts Options, newHash func() hash.Hash, report ErrorReporter) ([]CandidatePair, error) {
	opts = opts.withFallbacks()
	idx := NewIndex()
	for i, rec := range records {
		if rec.Seq == 0 {
			rec.Seq = int64(i + 1)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !opts.Eligible(rec) {
			continue
		}
		fp, _, err := Fingerprint(ctx, fsys, rec.Path, opts.ChunkSize, opts.ReadTimeout, newHash)
		if err != nil {
			report(rec.Path, StageFingerprint, err)
			continue
		}
		rec.Fingerprint = fp
		idx.Add(rec)
	}
	return idx.Candidates(), nil
}
