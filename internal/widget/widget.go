// Package widget defines the capability set every search widget exposes to
// the coordinator, the ordered registry that holds them, and a handful of
// reference widgets.
package widget

import (
	"context"

	"github.com/ricesearch/rice-facets/internal/query"
)

// TextID is the id of the widget that receives free-text terms restored
// from the address fragment. Exactly one widget may carry it.
const TextID = "text"

// Widget is an independently rendered unit that contributes to and reacts
// to the shared query.
//
// The coordinator invokes every hook while holding its lock. Hooks must not
// call back into the Coordinator synchronously; user-driven entry points
// (clicks, key presses) are the place to do that.
type Widget interface {
	ID() string

	// Init hands the widget a non-owning reference to its coordinator.
	Init(c Coordinator)
	AfterRegistration()

	AlterQuery(q *query.Query)
	DisplayQuery(q *query.Query)
	HandleResult(res *query.Result)
	StartAnimation()
	EndAnimation()

	// Select and Deselect report whether the selection actually changed.
	Select(items ...string) bool
	Deselect(items ...string) bool
	Clear()
}

// Coordinator is what a widget may ask of the manager that owns it.
type Coordinator interface {
	Select(ctx context.Context, id string, items ...string) (bool, error)
	Deselect(ctx context.Context, id string, items ...string) (bool, error)
	ClearWidget(ctx context.Context, id string) error
	SelectOnly(ctx context.Context, id string, items ...string) error
	KeepOnly(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
	RunRequest(ctx context.Context, start int) (uint64, error)
}
