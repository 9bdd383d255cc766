package widget

import "github.com/ricesearch/rice-facets/internal/query"

// TextWidget contributes its selected terms to the free-text query.
type TextWidget struct {
	Base
}

// NewTextWidget creates the free-text widget. It always uses TextID so that
// terms restored from the fragment find it.
func NewTextWidget() *TextWidget {
	return &TextWidget{Base: NewBase(TextID)}
}

// AlterQuery appends one term per selected item.
func (w *TextWidget) AlterQuery(q *query.Query) {
	for _, term := range w.selected {
		q.Q = append(q.Q, query.Item{Value: term})
	}
}
