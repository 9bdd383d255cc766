package widget

import (
	"slices"

	"github.com/ricesearch/rice-facets/internal/query"
)

// FacetWidget requests counts for one field and filters on the values the
// user picked.
type FacetWidget struct {
	Base
	field  string
	counts []query.FacetCount
}

// NewFacetWidget creates a facet widget over field.
func NewFacetWidget(id, field string) *FacetWidget {
	return &FacetWidget{Base: NewBase(id), field: field}
}

// Field returns the faceted field.
func (w *FacetWidget) Field() string { return w.field }

// AlterQuery requests the facet and appends one filter per selected value.
func (w *FacetWidget) AlterQuery(q *query.Query) {
	q.Fields = append(q.Fields, w.field)
	for _, v := range w.selected {
		q.FQ = append(q.FQ, query.FilterItem{WidgetID: w.id, Field: w.field, Value: v})
	}
}

// HandleResult keeps the counts returned for the field.
func (w *FacetWidget) HandleResult(res *query.Result) {
	if res == nil {
		w.counts = nil
		return
	}
	w.counts = slices.Clone(res.FacetFields[w.field])
}

// Counts returns the facet counts from the last applied result.
func (w *FacetWidget) Counts() []query.FacetCount {
	return slices.Clone(w.counts)
}
