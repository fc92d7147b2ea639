package scan

import (
	"context"
	"hash"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FingerprintConfig wires RunFingerprinters to its session.
type FingerprintConfig struct {
	FS       afero.Fs
	Options  Options
	NewHash  func() hash.Hash
	Index    *Index
	Progress *Progress
	Sink     ProgressSink
	Report   ErrorReporter
	Logger   *zap.Logger
}

// RunFingerprinters reads records from in and fingerprints them with
// cfg.Options.Workers goroutines, inserting each result into cfg.Index.
// Every record processed, hashed or not, ticks cfg.Sink once. The returned
// channel is closed when all workers are done.
func RunFingerprinters(ctx context.Context, cfg FingerprintConfig, in <-chan FileRecord) <-chan struct{} {
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Options.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case rec, ok := <-in:
					if !ok {
						return nil
					}
					cfg.fingerprint(gctx, rec)
				}
			}
		})
	}
	go func() {
		_ = g.Wait()
		close(done)
	}()
	return done
}

func (cfg FingerprintConfig) fingerprint(ctx context.Context, rec FileRecord) {
	defer cfg.Sink.Tick()

	fp, n, err := Fingerprint(ctx, cfg.FS, rec.Path, cfg.Options.ChunkSize, cfg.Options.ReadTimeout, cfg.NewHash)
	cfg.Progress.BytesRead.Add(n)
	if err != nil {
		if ctx.Err() != nil {
			return // scan cancelled, not a per-file failure
		}
		if isTimeout(err) {
			cfg.Logger.Warn("fingerprint read stalled",
				zap.String("path", rec.Path), zap.Duration("timeout", cfg.Options.ReadTimeout))
		}
		cfg.Report(rec.Path, StageFingerprint, err)
		return
	}
	rec.Fingerprint = fp
	cfg.Progress.FilesFingerprinted.Add(1)
	cfg.Index.Add(rec)
}
