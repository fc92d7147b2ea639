package scan

import (
	"context"

	"github.com/spf13/afero"
)

// AccumulatorConfig wires RunSizeAccumulator to its session.
type AccumulatorConfig struct {
	FS          afero.Fs
	Root        string
	MinFileSize int64
	// SkipUniqueSizes holds back records whose size no other eligible file
	// shares; they cannot have a duplicate and are never hashed.
	SkipUniqueSizes bool

	Progress *Progress
	Report   ErrorReporter
	// OnRecord is called for every eligible record, in Seq order.
	OnRecord func(FileRecord)
	// OnUnique is called, after in is exhausted, for every record held back
	// because of a unique size.
	OnUnique func(FileRecord)
}

// RunSizeAccumulator reads enumerated paths from in, assigns each one the
// next enumeration index, describes it and applies the size filter.
//
// With SkipUniqueSizes the first record seen per size is buffered. When a
// second record with the same size arrives, both are emitted to out as
// candidates for hashing; later records of a seen size are emitted
// immediately. Otherwise every eligible record is emitted.
// out is closed when in is exhausted or ctx is cancelled.
func RunSizeAccumulator(ctx context.Context, cfg AccumulatorConfig, in <-chan string, out chan<- FileRecord) {
	go func() {
		defer close(out)

		first := make(map[int64]FileRecord) // size → first-seen record
		seen := make(map[int64]bool)        // sizes with ≥2 records
		var seq int64

		send := func(rec FileRecord) bool {
			select {
			case out <- rec:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-in:
				if !ok {
					if cfg.OnUnique != nil {
						for _, rec := range first {
							cfg.OnUnique(rec)
						}
					}
					return
				}
				seq++
				cfg.Progress.FilesDiscovered.Add(1)

				rec, err := Describe(cfg.FS, cfg.Root, p)
				if err != nil {
					cfg.Report(p, StageStat, err)
					continue
				}
				rec.Seq = seq
				if rec.Size < cfg.MinFileSize {
					continue
				}
				cfg.Progress.FilesEligible.Add(1)
				if cfg.OnRecord != nil {
					cfg.OnRecord(rec)
				}

				if !cfg.SkipUniqueSizes || seen[rec.Size] {
					if !send(rec) {
						return
					}
					continue
				}

				if prev, ok := first[rec.Size]; ok {
					// Second record with this size: emit both.
					seen[rec.Size] = true
					delete(first, rec.Size)
					if !send(prev) || !send(rec) {
						return
					}
				} else {
					first[rec.Size] = rec
				}
			}
		}
	}()
}
