package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ricesearch/rice-facets/internal/query"
	"github.com/ricesearch/rice-facets/internal/widget"
)

// report is what a search prints.
type report struct {
	Seq      uint64                        `json:"seq"`
	Fragment string                        `json:"fragment"`
	NumFound int                           `json:"num_found"`
	Start    int                           `json:"start"`
	QTime    int                           `json:"qtime"`
	Docs     []map[string]any              `json:"docs"`
	Facets   map[string][]query.FacetCount `json:"facets,omitempty"`
	Selected map[string][]string           `json:"selected,omitempty"`
}

type selectionReader interface {
	Selected() []string
}

// collectReport reads the last applied result back out of the widgets.
func collectReport(seq uint64, fragment string, widgets []widget.Widget) report {
	r := report{
		Seq:      seq,
		Fragment: fragment,
		Docs:     []map[string]any{},
		Facets:   map[string][]query.FacetCount{},
		Selected: map[string][]string{},
	}

	for _, w := range widgets {
		switch w := w.(type) {
		case *widget.ResultWidget:
			if res := w.Result(); res != nil {
				r.NumFound = res.NumFound
				r.Start = res.Start
				r.QTime = res.QTime
				r.Docs = res.Docs
			}
		case *widget.FacetWidget:
			r.Facets[w.ID()] = w.Counts()
		case *widget.DateFacetWidget:
			r.Facets[w.ID()] = w.Counts()
		}
		if s, ok := w.(selectionReader); ok {
			if sel := s.Selected(); len(sel) > 0 {
				r.Selected[w.ID()] = sel
			}
		}
	}
	return r
}

func writeReport(out io.Writer, format string, r report, fields []string) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(out, "#%s\n", r.Fragment)
	fmt.Fprintf(out, "%d results (showing from %d, %dms)\n", r.NumFound, r.Start, r.QTime)

	for _, id := range sortedKeys(r.Selected) {
		fmt.Fprintf(out, "  selected %s: %s\n", id, strings.Join(r.Selected[id], ", "))
	}

	for i, doc := range r.Docs {
		fmt.Fprintf(out, "%3d. %v", r.Start+i+1, doc["id"])
		for _, f := range fields {
			if v, ok := doc[f]; ok {
				fmt.Fprintf(out, "  %s=%v", f, v)
			}
		}
		fmt.Fprintln(out)
	}

	for _, id := range sortedKeys(r.Facets) {
		counts := r.Facets[id]
		if len(counts) == 0 {
			continue
		}
		fmt.Fprintf(out, "[%s]\n", id)
		for _, c := range counts {
			fmt.Fprintf(out, "  %-30s %d\n", c.Value, c.Count)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
