package scan

import (
	"context"
	"hash"
	"io"
	"time"

	"github.com/spf13/afero"
)

// Fingerprint streams the file at path through newHash in chunks of exactly
// chunkSize bytes (the last chunk may be shorter) and returns the digest and
// the number of bytes read. Memory use is one chunk regardless of file size.
//
// The file is closed when ctx is done or when no read delivers data for
// readTimeout, so a stalled read returns instead of hanging the worker.
func Fingerprint(ctx context.Context, fsys afero.Fs, path string, chunkSize int, readTimeout time.Duration, newHash func() hash.Hash) (Digest, int64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, 0, &IOError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()
	wd := watchReads(readTimeout, f)
	defer wd.stop()
	r := wd.reader(f)

	h := newHash()
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
				err = ctx.Err()
			case wd.stalled():
				return nil, total, wd.err(path)
			}
			return nil, total, &IOError{Path: path, Op: "read", Err: err}
		}
		if ctx.Err() != nil {
			return nil, total, &IOError{Path: path, Op: "read", Err: ctx.Err()}
		}
	}
	return Digest(h.Sum(nil)), total, nil
}
