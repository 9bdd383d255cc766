package widget

import "github.com/ricesearch/rice-facets/internal/query"

// ResultWidget asks for a page of documents and keeps the last result and
// the query that was displayed while it was loading. Queries are built with
// rows=0, so a setup that only needs facet counts registers no ResultWidget.
type ResultWidget struct {
	Base
	rows      int
	result    *query.Result
	displayed *query.Query
}

// NewResultWidget creates a result list returning rows documents per page.
func NewResultWidget(id string, rows int) *ResultWidget {
	return &ResultWidget{Base: NewBase(id), rows: rows}
}

// AlterQuery raises the page size.
func (w *ResultWidget) AlterQuery(q *query.Query) {
	if w.rows > q.Rows {
		q.Rows = w.rows
	}
}

// DisplayQuery remembers the pending query.
func (w *ResultWidget) DisplayQuery(q *query.Query) {
	w.displayed = q
}

// HandleResult keeps the result.
func (w *ResultWidget) HandleResult(res *query.Result) {
	w.result = res
}

// Result returns the last applied result, or nil.
func (w *ResultWidget) Result() *query.Result {
	return w.result
}

// Displayed returns the last query shown while loading, or nil.
func (w *ResultWidget) Displayed() *query.Query {
	return w.displayed
}
