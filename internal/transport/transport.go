// Package transport sends queries to a search backend and delivers the
// responses back to the coordinator.
package transport

import (
	"context"
	"sync"

	"github.com/ricesearch/rice-facets/internal/query"
)

// Deliver receives the outcome of one request. Exactly one of res and err
// is non-nil.
type Deliver func(res *query.Result, err error)

// Transport executes a query and calls deliver once with the outcome.
// Execute must not call deliver while holding locks the coordinator may
// need; it may call it before returning.
type Transport interface {
	Execute(ctx context.Context, q *query.Query, deliver Deliver) error
}

// Searcher runs a query and returns the parsed result.
type Searcher interface {
	Search(ctx context.Context, q *query.Query) (*query.Result, error)
}

// Async runs every search on its own goroutine.
type Async struct {
	searcher Searcher
	wg       sync.WaitGroup
}

// NewAsync wraps a searcher in an asynchronous transport.
func NewAsync(s Searcher) *Async {
	return &Async{searcher: s}
}

// Execute starts the search and returns immediately.
func (a *Async) Execute(ctx context.Context, q *query.Query, deliver Deliver) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res, err := a.searcher.Search(ctx, q)
		deliver(res, err)
	}()
	return nil
}

// Wait blocks until every started search has delivered.
func (a *Async) Wait() {
	a.wg.Wait()
}

// Sync runs the search on the caller's goroutine and delivers before
// Execute returns.
type Sync struct {
	Searcher Searcher
}

// Execute runs the search and delivers its outcome.
func (s Sync) Execute(ctx context.Context, q *query.Query, deliver Deliver) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.Searcher.Search(ctx, q)
	deliver(res, err)
	return nil
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, q *query.Query) (*query.Result, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, q *query.Query) (*query.Result, error) {
	return f(ctx, q)
}
