package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"

	"github.com/eargollo/dupfind/internal/scan"
)

var separator = " " + strings.Repeat("-", 60)

// textWriter accumulates the first write error so rendering code stays flat.
type textWriter struct {
	w     io.Writer
	color bool
	err   error
}

func (t *textWriter) line(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format+"\n", args...)
}

func (t *textWriter) heading(s string) string {
	if !t.color {
		return s
	}
	return color.New(color.FgCyan, color.OpBold).Sprint(s)
}

func (t *textWriter) dim(s string) string {
	if !t.color {
		return s
	}
	return color.Gray.Sprint(s)
}

func writeText(w io.Writer, res *scan.Result, opts Options) error {
	t := &textWriter{w: w, color: opts.Color}

	if opts.Groups {
		writeGroups(t, res.Groups())
	} else {
		writePairs(t, res.Pairs)
	}

	if len(res.Skipped) > 0 {
		t.line("")
		t.line(t.heading(fmt.Sprintf("%d File(s) Skipped", len(res.Skipped))))
		for _, sk := range res.Skipped {
			t.line(" [%s] %s: %s", sk.Stage, sk.Path, sk.Message())
		}
	}

	st := res.Stats
	t.line("")
	t.line(t.dim(fmt.Sprintf("%s file(s) scanned, %s fingerprinted, %s reclaimable, %s skipped, elapsed %s",
		humanize.Comma(st.FilesDiscovered),
		humanize.Comma(st.FilesFingerprinted),
		humanize.Bytes(uint64(st.ReclaimableBytes)),
		humanize.Comma(st.Skipped),
		st.Elapsed.Round(time.Millisecond))))
	return t.err
}

func writePairs(t *textWriter, pairs []scan.ConfirmedPair) {
	if len(pairs) == 0 {
		t.line("No duplicates found")
		return
	}
	t.line(t.heading(fmt.Sprintf("%d Duplicate(s) Found", len(pairs))))
	for _, p := range pairs {
		t.line(separator)
		t.line("Duplicate")
		t.line(" %s", p.Duplicate.Path)
		t.line(" %s", p.Original.Path)
		t.line(separator)
	}
}

func writeGroups(t *textWriter, groups []scan.DuplicateGroup) {
	if len(groups) == 0 {
		t.line("No duplicates found")
		return
	}
	t.line(t.heading(fmt.Sprintf("%d Duplicate Group(s) Found", len(groups))))
	for _, g := range groups {
		t.line(separator)
		t.line("Original %s", t.dim(fmt.Sprintf("(%s, %d duplicate(s), %s reclaimable)",
			humanize.Bytes(uint64(g.Size)), len(g.Duplicates), humanize.Bytes(uint64(g.Reclaimable)))))
		t.line(" %s", g.Original.Path)
		for _, d := range g.Duplicates {
			t.line(" %s", d.Path)
		}
		t.line(separator)
	}
}
