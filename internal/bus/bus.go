// Package bus publishes search lifecycle events to interested listeners:
// in process, over Kafka, or into a JSON lines event log.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Publisher is the write side of a bus. The coordinator only publishes.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// Bus defines the interface for event bus implementations.
type Bus interface {
	Publisher

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the topic the event was created for.
	Type string `json:"type"`

	// Source identifies the coordinator that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// CorrelationID links every event of one request.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(topic, source, correlationID string, payload any) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          topic,
		Source:        source,
		Timestamp:     time.Now().UnixMilli(),
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// Lifecycle topics.
const (
	TopicRequest    = "facets.request"
	TopicResult     = "facets.result"
	TopicStale      = "facets.stale"
	TopicError      = "facets.error"
	TopicNavigation = "facets.navigation"
)

// Topics lists every lifecycle topic.
var Topics = []string{TopicRequest, TopicResult, TopicStale, TopicError, TopicNavigation}

// RequestPayload is published when a request is issued.
type RequestPayload struct {
	Seq   uint64 `json:"seq"`
	Start int    `json:"start"`
	Query string `json:"query"`
}

// ResultPayload is published when a result is applied to the widgets.
type ResultPayload struct {
	Seq       uint64 `json:"seq"`
	NumFound  int    `json:"num_found"`
	QTime     int    `json:"qtime"`
	LatencyMs int64  `json:"latency_ms"`
}

// StalePayload is published when a superseded response is discarded.
type StalePayload struct {
	Seq    uint64 `json:"seq"`
	Latest uint64 `json:"latest"`
}

// ErrorPayload is published when the transport fails the latest request.
type ErrorPayload struct {
	Seq     uint64 `json:"seq"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NavigationPayload is published when state is restored from the fragment.
type NavigationPayload struct {
	Fragment string   `json:"fragment"`
	Start    int      `json:"start"`
	Applied  int      `json:"applied"`
	Ignored  []string `json:"ignored,omitempty"`
}

// Discard is a bus that drops everything.
type Discard struct{}

// Publish drops the event.
func (Discard) Publish(context.Context, string, Event) error { return nil }

// Subscribe accepts the handler and never calls it.
func (Discard) Subscribe(context.Context, string, Handler) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }
