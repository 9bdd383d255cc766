package widget

import (
	"slices"

	"github.com/ricesearch/rice-facets/internal/query"
)

// Base implements the bookkeeping shared by most widgets: identity, the
// coordinator back-reference, an ordered selection and the loading flag.
// Embed it and override the hooks you need.
type Base struct {
	id          string
	coordinator Coordinator
	selected    []string
	loading     bool
}

// NewBase creates a Base with the given id.
func NewBase(id string) Base {
	return Base{id: id}
}

// ID returns the widget id.
func (b *Base) ID() string { return b.id }

// Init stores the coordinator back-reference.
func (b *Base) Init(c Coordinator) { b.coordinator = c }

// Coordinator returns the coordinator set by Init, or nil before registration.
func (b *Base) Coordinator() Coordinator { return b.coordinator }

// AfterRegistration does nothing.
func (b *Base) AfterRegistration() {}

// AlterQuery contributes nothing to the query.
func (b *Base) AlterQuery(*query.Query) {}

// DisplayQuery ignores the pending query.
func (b *Base) DisplayQuery(*query.Query) {}

// HandleResult ignores the result.
func (b *Base) HandleResult(*query.Result) {}

// StartAnimation marks the widget as loading.
func (b *Base) StartAnimation() { b.loading = true }

// EndAnimation clears the loading mark.
func (b *Base) EndAnimation() { b.loading = false }

// Loading reports whether a request is in flight for this widget.
func (b *Base) Loading() bool { return b.loading }

// Select adds items not already selected, keeping first-selection order.
func (b *Base) Select(items ...string) bool {
	changed := false
	for _, item := range items {
		if !slices.Contains(b.selected, item) {
			b.selected = append(b.selected, item)
			changed = true
		}
	}
	return changed
}

// Deselect removes items.
func (b *Base) Deselect(items ...string) bool {
	before := len(b.selected)
	b.selected = slices.DeleteFunc(b.selected, func(s string) bool {
		return slices.Contains(items, s)
	})
	return len(b.selected) != before
}

// Clear drops the whole selection.
func (b *Base) Clear() {
	b.selected = nil
}

// Selected returns a copy of the current selection.
func (b *Base) Selected() []string {
	return slices.Clone(b.selected)
}
