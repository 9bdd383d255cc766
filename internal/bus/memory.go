package bus

import (
	"context"
	"sync"
	"time"

	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
)

// MemoryBus is an in-process event bus. Handlers run on their own
// goroutines so a slow listener never holds up the coordinator.
type MemoryBus struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	closed     bool
	inflightWg sync.WaitGroup // Tracks in-flight handlers for graceful shutdown
	log        *logger.Logger
}

// NewMemoryBus creates a new in-memory event bus.
func NewMemoryBus(log *logger.Logger) *MemoryBus {
	if log == nil {
		log = logger.Discard()
	}
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		log:      log.WithComponent("bus"),
	}
}

// Publish publishes an event to all subscribers of a topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	// Fan out to all handlers with in-flight tracking
	for _, handler := range b.handlers[topic] {
		b.inflightWg.Add(1)
		go func(h Handler) {
			defer b.inflightWg.Done()
			if err := h(ctx, event); err != nil {
				b.log.Warn("handler failed", "topic", topic, "event", event.ID, "error", err)
			}
		}(handler)
	}

	return nil
}

// Subscribe registers a handler for events on a topic.
func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Close closes the bus, waiting for in-flight handlers to complete.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if !b.Drain(10 * time.Second) {
		b.log.Warn("event drain timeout reached, some handlers may not have completed")
	}

	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()

	return nil
}

// Drain waits for in-flight handlers and reports whether they finished
// within timeout.
func (b *MemoryBus) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.inflightWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
