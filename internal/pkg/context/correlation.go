// Package context carries request-scoped values through context.Context.
package context

import (
	"context"
)

type contextKey string

const (
	// CorrelationIDKey is the context key for the id shared by every log
	// line, event and backend call of one search request.
	CorrelationIDKey contextKey = "correlation_id"
)

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// CorrelationID retrieves the correlation ID from context.
// Returns empty string if not found.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}
