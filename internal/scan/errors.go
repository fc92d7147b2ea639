package scan

import "fmt"

// Pipeline stages a Skip can originate from.
const (
	StageWalk        = "walk"
	StageStat        = "stat"
	StageFingerprint = "fingerprint"
	StageVerify      = "verify"
)

// AccessError reports that the scan root is missing or unreadable. It is
// fatal: no part of the tree is scanned.
type AccessError struct {
	Root string
	Err  error
}

func (e *AccessError) Error() string { return fmt.Sprintf("access root %q: %v", e.Root, e.Err) }
func (e *AccessError) Unwrap() error { return e.Err }

// NotFoundError reports a file that vanished between enumeration and stat.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("file %q not found: %v", e.Path, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// IOError reports a file that could not be opened or read.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// Skip records a file or pair excluded from the result by a per-file error.
type Skip struct {
	Path  string `json:"path"  yaml:"path"`
	Stage string `json:"stage" yaml:"stage"`
	Err   error  `json:"-"     yaml:"-"`
}

// Message returns the error text, or "" when Err is nil.
func (s Skip) Message() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// ErrorReporter records a per-file pipeline error. Implementations must be
// safe for concurrent use.
type ErrorReporter func(path, stage string, err error)
