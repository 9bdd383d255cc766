package bus

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ricesearch/rice-facets/internal/config"
)

func TestEventLog_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")

	log, err := OpenEventLog(path)
	if err != nil {
		t.Fatalf("OpenEventLog() error = %v", err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	log.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < 3; i++ {
		event := NewEvent(TopicRequest, "test", "", RequestPayload{Seq: uint64(i + 1)})
		if err := log.Append(TopicRequest, event); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	log.Close()

	events, err := ReadEvents(path, time.Time{}, 0)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("ReadEvents() returned %d events, want 3", len(events))
	}
	if events[0].Topic != TopicRequest {
		t.Errorf("Topic = %s, want %s", events[0].Topic, TopicRequest)
	}

	since, _ := ReadEvents(path, base.Add(time.Second), 0)
	if len(since) != 2 {
		t.Errorf("ReadEvents(since) returned %d events, want 2", len(since))
	}

	limited, _ := ReadEvents(path, time.Time{}, 1)
	if len(limited) != 1 {
		t.Errorf("ReadEvents(limit 1) returned %d events", len(limited))
	}
}

func TestEventLog_AppendAfterClose(t *testing.T) {
	log, err := OpenEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("OpenEventLog() error = %v", err)
	}
	log.Close()

	if err := log.Append(TopicRequest, Event{}); err == nil {
		t.Error("Append() after Close error = nil")
	}
	if err := log.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestReadEvents_MissingFileAndMalformedLines(t *testing.T) {
	dir := t.TempDir()

	events, err := ReadEvents(filepath.Join(dir, "missing.jsonl"), time.Time{}, 0)
	if err != nil || len(events) != 0 {
		t.Errorf("ReadEvents(missing) = (%v, %v), want empty", events, err)
	}

	path := filepath.Join(dir, "events.jsonl")
	content := "not json\n" +
		`{"event":{"id":"a","type":"facets.result"},"topic":"facets.result","timestamp":"2024-01-01T00:00:00Z"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	events, err = ReadEvents(path, time.Time{}, 0)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Event.ID != "a" {
		t.Errorf("ReadEvents() = %+v, want the one valid line", events)
	}
}

type collectingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *collectingPublisher) Publish(_ context.Context, topic string, _ Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func TestEventLogTap_PublishAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	events, err := OpenEventLog(path)
	if err != nil {
		t.Fatalf("OpenEventLog() error = %v", err)
	}

	bus := Tapped(NewMemoryBus(nil), EventLogTap(events, nil))
	bus.Publish(context.Background(), TopicRequest, NewEvent(TopicRequest, "test", "", nil))
	bus.Publish(context.Background(), TopicResult, NewEvent(TopicResult, "test", "", nil))
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	pub := &collectingPublisher{}
	n, err := Replay(context.Background(), path, pub, time.Time{})
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if n != 2 || len(pub.topics) != 2 || pub.topics[1] != TopicResult {
		t.Errorf("Replay() = %d, topics %v", n, pub.topics)
	}
}

func TestReplay_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	events, _ := OpenEventLog(path)
	events.Append(TopicRequest, NewEvent(TopicRequest, "test", "", nil))
	events.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Replay(ctx, path, &collectingPublisher{}, time.Time{}); err == nil {
		t.Error("Replay() error = nil for cancelled context")
	}
}

func TestNewBus(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BusConfig
		wantErr bool
	}{
		{"none", config.BusConfig{Type: "none"}, false},
		{"empty", config.BusConfig{}, false},
		{"memory", config.BusConfig{Type: "memory"}, false},
		{"memory with log", config.BusConfig{Type: "memory", EventLog: filepath.Join(t.TempDir(), "e.jsonl")}, false},
		{"kafka without brokers", config.BusConfig{Type: "kafka"}, true},
		{"unknown", config.BusConfig{Type: "nats"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBus(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBus() error = %v, wantErr %v", err, tt.wantErr)
			}
			if b != nil {
				b.Close()
			}
		})
	}
}
