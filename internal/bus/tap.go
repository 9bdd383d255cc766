package bus

import (
	"context"
	"io"
	"time"

	"github.com/ricesearch/rice-facets/internal/pkg/logger"
)

// Tap observes every publish on a tapped bus, after the inner bus has
// handled it. A tap that is also an io.Closer is closed with the bus.
type Tap interface {
	Published(topic string, event Event, took time.Duration, err error)
}

// MetricsRecorder is implemented by the metrics package.
type MetricsRecorder interface {
	RecordBusPublish(topic string, latency time.Duration, err error)
}

type tappedBus struct {
	Bus
	taps []Tap
}

// Tapped returns inner with taps attached. With no taps it returns inner.
func Tapped(inner Bus, taps ...Tap) Bus {
	if len(taps) == 0 {
		return inner
	}
	if t, ok := inner.(*tappedBus); ok {
		return &tappedBus{Bus: t.Bus, taps: append(append([]Tap(nil), t.taps...), taps...)}
	}
	return &tappedBus{Bus: inner, taps: taps}
}

func (b *tappedBus) Publish(ctx context.Context, topic string, event Event) error {
	start := time.Now()
	err := b.Bus.Publish(ctx, topic, event)
	took := time.Since(start)
	for _, t := range b.taps {
		t.Published(topic, event, took, err)
	}
	return err
}

func (b *tappedBus) Close() error {
	for _, t := range b.taps {
		if c, ok := t.(io.Closer); ok {
			c.Close()
		}
	}
	return b.Bus.Close()
}

// MetricsTap reports publish latency and failures to m.
func MetricsTap(m MetricsRecorder) Tap { return metricsTap{m} }

type metricsTap struct{ m MetricsRecorder }

func (t metricsTap) Published(topic string, _ Event, took time.Duration, err error) {
	t.m.RecordBusPublish(topic, took, err)
}

// EventLogTap appends every event to events, whether or not the inner bus
// accepted it. A failed append is logged and otherwise ignored.
func EventLogTap(events *EventLog, log *logger.Logger) Tap {
	if log == nil {
		log = logger.Default()
	}
	return &eventLogTap{events: events, log: log.WithComponent("event-log")}
}

type eventLogTap struct {
	events *EventLog
	log    *logger.Logger
}

func (t *eventLogTap) Published(topic string, event Event, _ time.Duration, _ error) {
	if err := t.events.Append(topic, event); err != nil {
		t.log.Warn("Failed to append event", "topic", topic, "path", t.events.Path(), "error", err)
	}
}

func (t *eventLogTap) Close() error {
	return t.events.Close()
}
