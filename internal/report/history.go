package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/eargollo/dupfind/internal/store"
)

// WriteScans renders scan history.
func WriteScans(w io.Writer, format string, scans []store.Scan) error {
	switch format {
	case JSON:
		return encodeJSON(w, scans)
	case YAML:
		return encodeYAML(w, scans)
	case Text, "":
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	if len(scans) == 0 {
		_, err := fmt.Fprintln(w, "No scans recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tTRIGGER\tROOT\tFILES\tDUPLICATES\tRECLAIMABLE\tSKIPPED")
	for _, sc := range scans {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sc.ID,
			humanize.Time(sc.StartedAt),
			sc.Status,
			sc.TriggeredBy,
			sc.Root,
			humanize.Comma(sc.Stats.FilesDiscovered),
			humanize.Comma(sc.Stats.Confirmed),
			humanize.Bytes(uint64(sc.Stats.ReclaimableBytes)),
			humanize.Comma(sc.Stats.Skipped))
	}
	return tw.Flush()
}

// WriteStoredPairs renders the pairs recorded for one scan, as pairs or
// folded into groups.
func WriteStoredPairs(w io.Writer, format string, sc store.Scan, pairs []store.Pair, opts Options) error {
	switch format {
	case JSON, YAML:
		var v any = pairs
		if opts.Groups {
			v = store.GroupPairs(pairs)
		}
		if format == JSON {
			return encodeJSON(w, v)
		}
		return encodeYAML(w, v)
	case Text, "":
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	t := &textWriter{w: w, color: opts.Color}
	t.line(t.dim(fmt.Sprintf("Scan %d of %s, %s (%s)", sc.ID, sc.Root, sc.Status, sc.StartedAt.Local().Format(time.DateTime))))
	switch {
	case len(pairs) == 0:
		t.line("No duplicates found")
	case opts.Groups:
		groups := store.GroupPairs(pairs)
		t.line(t.heading(fmt.Sprintf("%d Duplicate Group(s) Found", len(groups))))
		for _, g := range groups {
			t.line(separator)
			t.line("Original %s", t.dim(fmt.Sprintf("(%s, %d duplicate(s), %s reclaimable)",
				humanize.Bytes(uint64(g.Size)), len(g.DuplicatePaths), humanize.Bytes(uint64(g.Reclaimable)))))
			t.line(" %s", g.OriginalPath)
			for _, d := range g.DuplicatePaths {
				t.line(" %s", d)
			}
			t.line(separator)
		}
	default:
		t.line(t.heading(fmt.Sprintf("%d Duplicate(s) Found", len(pairs))))
		for _, p := range pairs {
			t.line(separator)
			t.line("Duplicate")
			t.line(" %s", p.DuplicatePath)
			t.line(" %s", p.OriginalPath)
			t.line(separator)
		}
	}
	return t.err
}
