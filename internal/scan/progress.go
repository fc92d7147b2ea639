package scan

import (
	"sync/atomic"
	"time"
)

// ProgressSink receives one Tick per file processed during fingerprinting
// and one Close when the scan ends. Rendering is the sink's business.
type ProgressSink interface {
	Tick()
	Close()
}

// MessageSink receives the human-readable status lines of a scan (start,
// each duplicate found, completion, elapsed time).
type MessageSink interface {
	Printf(format string, args ...any)
}

// Progress holds live counters updated by the pipeline stages.
// All fields are atomic so they can be written from worker goroutines and
// read from the HTTP handler without locks. Progress is itself a
// ProgressSink: Tick counts processed files and Close stamps FinishedAt.
type Progress struct {
	FilesDiscovered    atomic.Int64
	FilesEligible      atomic.Int64
	FilesProcessed     atomic.Int64 // ticks
	FilesFingerprinted atomic.Int64
	BytesRead          atomic.Int64
	Candidates         atomic.Int64
	PairsVerified      atomic.Int64
	Confirmed          atomic.Int64
	Errors             atomic.Int64
	// FinishedAt is a Unix timestamp set by Close (0 = still running).
	FinishedAt atomic.Int64
}

// Tick implements ProgressSink.
func (p *Progress) Tick() { p.FilesProcessed.Add(1) }

// Close implements ProgressSink.
func (p *Progress) Close() { p.FinishedAt.CompareAndSwap(0, time.Now().Unix()) }

// ProgressSnapshot is a plain copy of Progress for JSON responses.
type ProgressSnapshot struct {
	FilesDiscovered    int64 `json:"files_discovered"`
	FilesEligible      int64 `json:"files_eligible"`
	FilesProcessed     int64 `json:"files_processed"`
	FilesFingerprinted int64 `json:"files_fingerprinted"`
	BytesRead          int64 `json:"bytes_read"`
	Candidates         int64 `json:"candidates"`
	PairsVerified      int64 `json:"pairs_verified"`
	Confirmed          int64 `json:"confirmed"`
	Errors             int64 `json:"errors"`
}

// Snapshot loads every counter.
func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		FilesDiscovered:    p.FilesDiscovered.Load(),
		FilesEligible:      p.FilesEligible.Load(),
		FilesProcessed:     p.FilesProcessed.Load(),
		FilesFingerprinted: p.FilesFingerprinted.Load(),
		BytesRead:          p.BytesRead.Load(),
		Candidates:         p.Candidates.Load(),
		PairsVerified:      p.PairsVerified.Load(),
		Confirmed:          p.Confirmed.Load(),
		Errors:             p.Errors.Load(),
	}
}

// multiSink fans Tick and Close out to several sinks.
type multiSink []ProgressSink

func (m multiSink) Tick() {
	for _, s := range m {
		s.Tick()
	}
}

func (m multiSink) Close() {
	for _, s := range m {
		s.Close()
	}
}

type nopMessages struct{}

func (nopMessages) Printf(string, ...any) {}
