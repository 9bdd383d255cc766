package widget

import (
	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/security"
	"github.com/ricesearch/rice-facets/internal/query"
)

// AdmitFunc decides whether a widget may join the registry.
type AdmitFunc func(w Widget) bool

// AdmitAll is the default admission predicate.
func AdmitAll(Widget) bool { return true }

// Registry holds widgets keyed by id. Registration order is part of the
// contract: it is the order in which widgets alter queries and receive
// every broadcast.
//
// Registry is not safe for concurrent use; the manager serializes access.
type Registry struct {
	order   []string
	widgets map[string]Widget
	admit   AdmitFunc
}

// NewRegistry creates an empty registry. A nil admit admits everything.
func NewRegistry(admit AdmitFunc) *Registry {
	if admit == nil {
		admit = AdmitAll
	}
	return &Registry{
		widgets: make(map[string]Widget),
		admit:   admit,
	}
}

// Register admits w, gives it the coordinator back-reference, stores it and
// runs its AfterRegistration hook before returning.
func (r *Registry) Register(w Widget, c Coordinator) error {
	id := w.ID()
	if err := security.ValidateWidgetID(id); err != nil {
		return errors.ValidationError(err.Error())
	}
	if !r.admit(w) {
		return errors.RejectedError(id)
	}
	if _, exists := r.widgets[id]; exists {
		return errors.DuplicateWidgetError(id)
	}

	w.Init(c)
	r.order = append(r.order, id)
	r.widgets[id] = w
	w.AfterRegistration()
	return nil
}

// Replace swaps the widget registered under w.ID() for w, keeping its
// position. Registering a new id through Replace appends it.
func (r *Registry) Replace(w Widget, c Coordinator) error {
	id := w.ID()
	if _, exists := r.widgets[id]; !exists {
		return r.Register(w, c)
	}
	if !r.admit(w) {
		return errors.RejectedError(id)
	}

	w.Init(c)
	r.widgets[id] = w
	w.AfterRegistration()
	return nil
}

// Get returns the widget registered under id.
func (r *Registry) Get(id string) (Widget, bool) {
	w, ok := r.widgets[id]
	return w, ok
}

// Len returns the number of registered widgets.
func (r *Registry) Len() int {
	return len(r.order)
}

// IDs returns widget ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Widgets returns a snapshot of the widgets in registration order.
func (r *Registry) Widgets() []Widget {
	out := make([]Widget, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.widgets[id])
	}
	return out
}

// Each calls fn for every widget in registration order.
func (r *Registry) Each(fn func(Widget)) {
	for _, id := range r.order {
		fn(r.widgets[id])
	}
}

// Alterers returns the widgets as query alterers, in registration order.
func (r *Registry) Alterers() []query.Alterer {
	out := make([]query.Alterer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.widgets[id])
	}
	return out
}
