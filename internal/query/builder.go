package query

import "slices"

// Alterer contributes to a query under construction. Implementations may
// append to any of the slice fields; removing entries added by someone else
// is not supported.
type Alterer interface {
	AlterQuery(q *Query)
}

// Base holds the filters every query starts from.
type Base struct {
	Q  []Item
	FQ []FilterItem
	FL []string
}

// Build folds alterers, in order, over a fresh query seeded from base.
// The base slices are copied so alterers can never modify them.
func Build(base Base, start int, alterers []Alterer) *Query {
	if start < 0 {
		start = 0
	}

	q := &Query{
		Q:      slices.Clone(base.Q),
		FQ:     slices.Clone(base.FQ),
		FL:     slices.Clone(base.FL),
		Fields: []string{},
		Dates:  []DateFacet{},
		Start:  start,
		Rows:   0,
		baseQ:  len(base.Q),
		baseFQ: len(base.FQ),
	}
	if q.Q == nil {
		q.Q = []Item{}
	}
	if q.FQ == nil {
		q.FQ = []FilterItem{}
	}
	if q.FL == nil {
		q.FL = []string{}
	}

	for _, a := range alterers {
		a.AlterQuery(q)
	}

	return q
}
