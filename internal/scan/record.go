package scan

import (
	"encoding/hex"
	"time"

	"github.com/eargollo/dupfind/internal/filetype"
)

// Digest is the finalized fingerprint of a file's full byte stream.
type Digest []byte

// String returns the lowercase hex form of the digest.
func (f Digest) String() string { return hex.EncodeToString(f) }

// FileRecord describes one regular file discovered under the scan root.
// Fingerprint is nil until the fingerprinter has processed the file and is
// never modified afterwards.
type FileRecord struct {
	// Seq is the enumeration-order index. It decides which file is the
	// "original" of a duplicate pair, regardless of hashing order.
	Seq     int64  `json:"seq"                yaml:"seq"`
	Path    string `json:"path"               yaml:"path"`
	RelPath string `json:"rel_path"           yaml:"rel_path"`
	Size    int64  `json:"size"               yaml:"size"`

	Fingerprint Digest `json:"-" yaml:"-"`

	IsSymlink  bool   `json:"is_symlink"         yaml:"is_symlink"`
	IsHardlink bool   `json:"is_hardlink"        yaml:"is_hardlink"`
	Links      uint64 `json:"links"              yaml:"links"`
	InTrash    bool   `json:"in_trash,omitempty" yaml:"in_trash,omitempty"`

	Ext  string            `json:"ext"            yaml:"ext"`
	Type filetype.Category `json:"type,omitempty" yaml:"type,omitempty"`
	MIME string            `json:"mime,omitempty" yaml:"mime,omitempty"`

	Created  time.Time `json:"created"  yaml:"created"` // inode change time on Unix
	Modified time.Time `json:"modified" yaml:"modified"`
	Accessed time.Time `json:"accessed" yaml:"accessed"`
}

// CandidatePair is two records sharing a fingerprint, not yet proven
// byte-identical. Original is the first-seen member of the fingerprint.
type CandidatePair struct {
	Duplicate FileRecord
	Original  FileRecord
}

// ConfirmedPair is a CandidatePair that passed exact-content verification.
type ConfirmedPair struct {
	Original  FileRecord `json:"original"  yaml:"original"`
	Duplicate FileRecord `json:"duplicate" yaml:"duplicate"`
}

// Paths returns the original and duplicate paths.
func (p ConfirmedPair) Paths() (original, duplicate string) {
	return p.Original.Path, p.Duplicate.Path
}

// DuplicateGroup is the N-way view of every confirmed pair that shares the
// same original.
type DuplicateGroup struct {
	Original    FileRecord   `json:"original"          yaml:"original"`
	Duplicates  []FileRecord `json:"duplicates"        yaml:"duplicates"`
	Size        int64        `json:"size"              yaml:"size"`
	Reclaimable int64        `json:"reclaimable_bytes" yaml:"reclaimable_bytes"`
}
