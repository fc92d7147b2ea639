package scan

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Compare reports whether the files at a and b hold exactly the same bytes.
// Only content is compared; timestamps and names never matter. Files of
// different sizes are unequal without being read.
//
// Both files are closed when ctx is done or when neither has delivered data
// for readTimeout, which unblocks a read stuck on either of them.
func Compare(ctx context.Context, fsys afero.Fs, a, b string, chunkSize int, readTimeout time.Duration) (bool, error) {
	fa, err := fsys.Open(a)
	if err != nil {
		return false, &IOError{Path: a, Op: "open", Err: err}
	}
	defer fa.Close()
	fb, err := fsys.Open(b)
	if err != nil {
		return false, &IOError{Path: b, Op: "open", Err: err}
	}
	defer fb.Close()

	ia, err := fa.Stat()
	if err != nil {
		return false, &IOError{Path: a, Op: "stat", Err: err}
	}
	ib, err := fb.Stat()
	if err != nil {
		return false, &IOError{Path: b, Op: "stat", Err: err}
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	stop := context.AfterFunc(ctx, func() {
		fa.Close()
		fb.Close()
	})
	defer stop()
	wd := watchReads(readTimeout, fa, fb)
	defer wd.stop()
	ra, rb := wd.reader(fa), wd.reader(fb)

	readErr := func(path string, err error) error {
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case wd.stalled():
			return wd.err(path)
		}
		return &IOError{Path: path, Op: "read", Err: err}
	}

	bufA := make([]byte, chunkSize)
	bufB := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		na, errA := io.ReadFull(ra, bufA)
		if errA != nil && errA != io.EOF && errA != io.ErrUnexpectedEOF {
			return false, readErr(a, errA)
		}
		nb, errB := io.ReadFull(rb, bufB)
		if errB != nil && errB != io.EOF && errB != io.ErrUnexpectedEOF {
			return false, readErr(b, errB)
		}
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA != nil || errB != nil {
			// Both streams ended on the same byte.
			return errA != nil && errB != nil, nil
		}
	}
}

// Verify compares every candidate pair byte for byte using up to
// opts.Verifiers goroutines, reading opts.ChunkSize bytes at a time under
// opts.ReadTimeout, and returns the confirmed pairs in candidate order. Pairs whose
// content differs are dropped silently; pairs that cannot be read are
// passed to report and dropped. The second return value is the number of
// mismatches (fingerprint collisions).
func Verify(ctx context.Context, fsys afero.Fs, pairs []CandidatePair, opts Options, progress *Progress, report ErrorReporter) ([]ConfirmedPair, int, error) {
	opts = opts.withFallbacks()
	type outcome struct {
		equal bool
		err   error
	}
	results := make([]outcome, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Verifiers)
	for i, p := range pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			eq, err := Compare(gctx, fsys, p.Original.Path, p.Duplicate.Path, opts.ChunkSize, opts.ReadTimeout)
			results[i] = outcome{equal: eq, err: err}
			if progress != nil {
				progress.PairsVerified.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var confirmed []ConfirmedPair
	collisions := 0
	for i, r := range results {
		p := pairs[i]
		switch {
		case r.err != nil:
			report(p.Duplicate.Path, StageVerify, r.err)
		case r.equal:
			confirmed = append(confirmed, ConfirmedPair{Original: p.Original, Duplicate: p.Duplicate})
		default:
			collisions++
		}
	}
	return confirmed, collisions, nil
}
