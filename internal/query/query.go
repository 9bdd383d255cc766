// Package query models the faceted search query that widgets build
// together, its backend serialization and the backend result.
package query

// DateFacet requests range counts over a date field.
type DateFacet struct {
	Field string `json:"field"`
	Start string `json:"start"`
	End   string `json:"end"`
	Gap   string `json:"gap"`
}

// Query is rebuilt for every request and discarded once it has been sent
// and persisted.
type Query struct {
	Q      []Item       `json:"q"`
	FQ     []FilterItem `json:"fq"`
	FL     []string     `json:"fl"`
	Fields []string     `json:"fields"`
	Dates  []DateFacet  `json:"dates"`
	Start  int          `json:"start"`
	Rows   int          `json:"rows"`
	Sort   string       `json:"sort,omitempty"`

	// Seq is the request sequence number assigned when the query is issued.
	Seq uint64 `json:"seq"`

	baseQ  int
	baseFQ int
}

// WidgetTerms returns the terms contributed by widgets, skipping the base terms.
func (q *Query) WidgetTerms() []Item {
	if q.baseQ > len(q.Q) {
		return nil
	}
	return q.Q[q.baseQ:]
}

// WidgetFilters returns the filters contributed by widgets, skipping the base filters.
func (q *Query) WidgetFilters() []FilterItem {
	if q.baseFQ > len(q.FQ) {
		return nil
	}
	return q.FQ[q.baseFQ:]
}
