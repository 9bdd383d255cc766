package widget

import (
	"slices"

	"github.com/ricesearch/rice-facets/internal/query"
)

// DateFacetWidget requests date range counts and filters on selected
// ranges. Selected items are backend range expressions such as
// "[2020-01-01T00:00:00Z TO 2021-01-01T00:00:00Z]".
type DateFacetWidget struct {
	Base
	facet  query.DateFacet
	counts []query.FacetCount
}

// NewDateFacetWidget creates a date facet widget.
func NewDateFacetWidget(id string, facet query.DateFacet) *DateFacetWidget {
	return &DateFacetWidget{Base: NewBase(id), facet: facet}
}

// AlterQuery requests the date facet and appends one filter per range.
func (w *DateFacetWidget) AlterQuery(q *query.Query) {
	q.Dates = append(q.Dates, w.facet)
	for _, r := range w.selected {
		q.FQ = append(q.FQ, query.FilterItem{WidgetID: w.id, Field: w.facet.Field, Value: r})
	}
}

// HandleResult keeps the range counts returned for the field.
func (w *DateFacetWidget) HandleResult(res *query.Result) {
	if res == nil {
		w.counts = nil
		return
	}
	w.counts = slices.Clone(res.FacetDates[w.facet.Field])
}

// Counts returns the range counts from the last applied result.
func (w *DateFacetWidget) Counts() []query.FacetCount {
	return slices.Clone(w.counts)
}
