package scan

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"
	"time"
)

// Options is the immutable description of one scan. Build it once (see
// config.Config.ScanOptions) and pass it by value.
type Options struct {
	Root        string
	Pattern     string // doublestar glob; "" or "**" selects every file
	MinFileSize int64
	ChunkSize   int
	ExcludeDirs []string
	Hash        string

	Walkers   int
	Workers   int
	Verifiers int

	// ReadTimeout is how long a read may go without delivering any data
	// before the file is abandoned; 0 disables it.
	ReadTimeout time.Duration

	SkipSymlinks    bool
	SkipUniqueSizes bool
}

// DefaultOptions selects every file of at least one byte, hashed as MD5 in
// 4 KiB chunks.
func DefaultOptions() Options {
	return Options{
		Root:            ".",
		Pattern:         "**",
		MinFileSize:     1,
		ChunkSize:       4096,
		Hash:            "md5",
		Walkers:         1,
		Workers:         4,
		Verifiers:       2,
		ReadTimeout:     30 * time.Second,
		SkipUniqueSizes: true,
	}
}

// Eligible reports whether rec passes the size filter.
func (o Options) Eligible(rec FileRecord) bool {
	return rec.Size >= o.MinFileSize
}

// withFallbacks fills zero knobs so a hand-built Options still runs.
func (o Options) withFallbacks() Options {
	d := DefaultOptions()
	if o.Root == "" {
		o.Root = d.Root
	}
	if o.Pattern == "" {
		o.Pattern = d.Pattern
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.Hash == "" {
		o.Hash = d.Hash
	}
	if o.Walkers <= 0 {
		o.Walkers = 1
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Verifiers <= 0 {
		o.Verifiers = 1
	}
	return o
}

// HashNames lists the accepted values of Options.Hash.
var HashNames = []string{"md5", "sha1", "sha256", "sha512"}

// HashFunc returns the constructor for the named digest algorithm.
func HashFunc(name string) (func() hash.Hash, error) {
	switch strings.ToLower(name) {
	case "md5", "":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", name)
	}
}
