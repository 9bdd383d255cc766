package widget

import "github.com/ricesearch/rice-facets/internal/query"

// SortWidget holds a single sort expression. Selecting replaces it.
type SortWidget struct {
	Base
}

// NewSortWidget creates a sort widget.
func NewSortWidget(id string) *SortWidget {
	return &SortWidget{Base: NewBase(id)}
}

// Select keeps only the last item.
func (w *SortWidget) Select(items ...string) bool {
	if len(items) == 0 {
		return false
	}
	next := items[len(items)-1]
	if len(w.selected) == 1 && w.selected[0] == next {
		return false
	}
	w.selected = []string{next}
	return true
}

// AlterQuery sets the sort expression when one is selected.
func (w *SortWidget) AlterQuery(q *query.Query) {
	if len(w.selected) > 0 {
		q.Sort = w.selected[0]
	}
}
