package context

import (
	"context"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Errorf("CorrelationID(empty) = %q, want empty", got)
	}

	ctx = WithCorrelationID(ctx, "session/7")
	if got := CorrelationID(ctx); got != "session/7" {
		t.Errorf("CorrelationID() = %q, want session/7", got)
	}

	// Survives derivation, including detaching from cancellation.
	child, cancel := context.WithCancel(ctx)
	cancel()
	if got := CorrelationID(context.WithoutCancel(child)); got != "session/7" {
		t.Errorf("CorrelationID(detached) = %q, want session/7", got)
	}
}
