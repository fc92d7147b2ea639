// Package report renders scan results and scan history as text, JSON or
// YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/eargollo/dupfind/internal/scan"
)

// Formats.
const (
	Text = "text"
	JSON = "json"
	YAML = "yaml"
)

// Formats lists the accepted format names.
var Formats = []string{Text, JSON, YAML}

// Options controls rendering.
type Options struct {
	// Groups renders N-way groups instead of pairs.
	Groups bool
	// Color enables coloured headings in the text format.
	Color bool
}

// IsTerminal reports whether w is a terminal, the only case where colour
// should be on.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Document is the JSON/YAML shape of a scan result.
type Document struct {
	Root      string         `json:"root"             yaml:"root"`
	Pattern   string         `json:"pattern"          yaml:"pattern"`
	StartedAt time.Time      `json:"started_at"       yaml:"started_at"`
	Stats     scan.Stats     `json:"stats"            yaml:"stats"`
	Pairs     []PairDoc      `json:"pairs,omitempty"  yaml:"pairs,omitempty"`
	Groups    []GroupDoc     `json:"groups,omitempty" yaml:"groups,omitempty"`
	Skipped   []SkipDoc      `json:"skipped"          yaml:"skipped"`
	Types     map[string]int `json:"types,omitempty"  yaml:"types,omitempty"`
}

// PairDoc is one confirmed pair.
type PairDoc struct {
	Original  string `json:"original"  yaml:"original"`
	Duplicate string `json:"duplicate" yaml:"duplicate"`
	Size      int64  `json:"size"      yaml:"size"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
}

// GroupDoc is one N-way group.
type GroupDoc struct {
	Original    string   `json:"original"          yaml:"original"`
	Duplicates  []string `json:"duplicates"        yaml:"duplicates"`
	Size        int64    `json:"size"              yaml:"size"`
	Reclaimable int64    `json:"reclaimable_bytes" yaml:"reclaimable_bytes"`
}

// SkipDoc is one skipped file.
type SkipDoc struct {
	Path  string `json:"path"  yaml:"path"`
	Stage string `json:"stage" yaml:"stage"`
	Error string `json:"error" yaml:"error"`
}

// NewDocument converts res for structured output.
func NewDocument(res *scan.Result, opts Options) Document {
	doc := Document{
		Root:      res.Root,
		Pattern:   res.Pattern,
		StartedAt: res.StartedAt,
		Stats:     res.Stats,
		Skipped:   []SkipDoc{},
	}
	if opts.Groups {
		doc.Groups = []GroupDoc{}
		for _, g := range res.Groups() {
			gd := GroupDoc{Original: g.Original.Path, Size: g.Size, Reclaimable: g.Reclaimable}
			for _, d := range g.Duplicates {
				gd.Duplicates = append(gd.Duplicates, d.Path)
			}
			doc.Groups = append(doc.Groups, gd)
		}
	} else {
		doc.Pairs = []PairDoc{}
		for _, p := range res.Pairs {
			doc.Pairs = append(doc.Pairs, PairDoc{
				Original:  p.Original.Path,
				Duplicate: p.Duplicate.Path,
				Size:      p.Duplicate.Size,
				Type:      string(p.Duplicate.Type),
			})
		}
	}
	for _, sk := range res.Skipped {
		doc.Skipped = append(doc.Skipped, SkipDoc{Path: sk.Path, Stage: sk.Stage, Error: sk.Message()})
	}
	if types := res.TypeSummary(); len(types) > 0 {
		doc.Types = make(map[string]int, len(types))
		for k, v := range types {
			doc.Types[string(k)] = v
		}
	}
	return doc
}

// Write renders res to w in format.
func Write(w io.Writer, format string, res *scan.Result, opts Options) error {
	switch format {
	case Text, "":
		return writeText(w, res, opts)
	case JSON:
		return encodeJSON(w, NewDocument(res, opts))
	case YAML:
		return encodeYAML(w, NewDocument(res, opts))
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
