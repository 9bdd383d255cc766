package fragment

import (
	"strconv"
	"strings"
	"sync"

	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/query"
	"github.com/ricesearch/rice-facets/internal/widget"
)

// Segment prefixes of the fragment grammar:
//
//	fq=<filter>&...&q=<term>&...&start=<offset>
const (
	prefixFilter = "fq="
	prefixTerm   = "q="
	prefixStart  = "start="
)

// Outcome of decoding one fragment segment.
type Outcome struct {
	Segment string
	Widget  string
	Err     error
}

// DecodeState is what Decode restored from the live fragment.
type DecodeState struct {
	Fragment string
	Start    int
	// Reset is true when widget selections were cleared before applying.
	Reset   bool
	Applied []Outcome
	Ignored []Outcome
}

// Codec writes queries into the navigator and restores widget selections
// from it. It remembers the last fragment it wrote or read so a watcher can
// detect navigation it did not cause.
type Codec struct {
	nav Navigator

	mu        sync.RWMutex
	lastKnown string
}

// NewCodec creates a codec over nav.
func NewCodec(nav Navigator) *Codec {
	return &Codec{nav: nav}
}

// Navigator returns the underlying navigator.
func (c *Codec) Navigator() Navigator { return c.nav }

// LastKnown returns the cached fragment.
func (c *Codec) LastKnown() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastKnown
}

// Format renders the fragment for q: widget filters, then widget terms,
// then the start offset.
func Format(q *query.Query) string {
	var segments []string
	for _, f := range q.WidgetFilters() {
		segments = append(segments, prefixFilter+f.Fragment())
	}
	for _, item := range q.WidgetTerms() {
		segments = append(segments, prefixTerm+item.Fragment())
	}
	segments = append(segments, prefixStart+strconv.Itoa(q.Start))
	return strings.Join(segments, "&")
}

// Encode writes the fragment for q and caches the live value read back
// from the navigator, which may differ from what was written.
func (c *Codec) Encode(q *query.Query) string {
	c.nav.WriteFragment(Format(q))
	live := c.nav.ReadFragment()

	c.mu.Lock()
	c.lastKnown = live
	c.mu.Unlock()

	return live
}

// Decode restores selections from the live fragment into reg. A non-empty
// fragment clears every widget first, so selections come entirely from the
// fragment; an empty one leaves defaults set at registration alone.
func (c *Codec) Decode(reg *widget.Registry) DecodeState {
	live := c.nav.ReadFragment()

	c.mu.Lock()
	c.lastKnown = live
	c.mu.Unlock()

	state := DecodeState{Fragment: live}
	if live == "" {
		return state
	}

	state.Reset = true
	reg.Each(func(w widget.Widget) { w.Clear() })

	for _, segment := range strings.Split(live, "&") {
		if segment == "" {
			continue
		}
		outcome := apply(reg, segment, &state.Start)
		if outcome.Err != nil {
			state.Ignored = append(state.Ignored, outcome)
		} else {
			state.Applied = append(state.Applied, outcome)
		}
	}

	return state
}

func apply(reg *widget.Registry, segment string, start *int) Outcome {
	out := Outcome{Segment: segment}

	switch {
	case strings.HasPrefix(segment, prefixFilter):
		f, err := query.ParseFilterFragment(strings.TrimPrefix(segment, prefixFilter))
		if err != nil {
			out.Err = err
			return out
		}
		out.Widget = f.WidgetID
		w, ok := reg.Get(f.WidgetID)
		if !ok {
			out.Err = errors.NotFoundError("widget " + f.WidgetID)
			return out
		}
		w.Select(f.Value)

	case strings.HasPrefix(segment, prefixTerm):
		item, err := query.ParseItemFragment(strings.TrimPrefix(segment, prefixTerm))
		if err != nil {
			out.Err = err
			return out
		}
		out.Widget = widget.TextID
		w, ok := reg.Get(widget.TextID)
		if !ok {
			out.Err = errors.NotFoundError("widget " + widget.TextID)
			return out
		}
		w.Select(item.Value)

	case strings.HasPrefix(segment, prefixStart):
		n, err := strconv.Atoi(strings.TrimPrefix(segment, prefixStart))
		if err != nil || n < 0 {
			out.Err = errors.MalformedSegmentError(segment, err)
			return out
		}
		*start = n

	default:
		out.Err = errors.MalformedSegmentError(segment, nil)
	}

	return out
}
