package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ricesearch/rice-facets/internal/pkg/errors"
)

// LoggedEvent is one line of the event log.
type LoggedEvent struct {
	Event     Event     `json:"event"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// EventLog appends events to a JSON lines file for auditing and replay.
type EventLog struct {
	path    string
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	now     func() time.Time
}

// OpenEventLog opens path for appending, creating parent directories.
func OpenEventLog(path string) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	return &EventLog{
		path:    path,
		file:    file,
		encoder: json.NewEncoder(file),
		now:     time.Now,
	}, nil
}

// Path returns the log file path.
func (l *EventLog) Path() string { return l.path }

// Append writes one event.
func (l *EventLog) Append(topic string, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New(errors.CodeUnavailable, "event log is closed")
	}

	if err := l.encoder.Encode(LoggedEvent{Event: event, Topic: topic, Timestamp: l.now()}); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// ReadEvents returns logged events newer than since, oldest first, at most
// limit of them when limit > 0. Malformed lines are skipped.
func ReadEvents(path string, since time.Time, limit int) ([]LoggedEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []LoggedEvent{}, nil
		}
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	events := []LoggedEvent{}
	scanner := bufio.NewScanner(file)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		var le LoggedEvent
		if err := json.Unmarshal(scanner.Bytes(), &le); err != nil {
			continue
		}
		if !le.Timestamp.After(since) {
			continue
		}
		events = append(events, le)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan event log: %w", err)
	}
	return events, nil
}

// Replay publishes logged events newer than since to p, in order.
func Replay(ctx context.Context, path string, p Publisher, since time.Time) (int, error) {
	events, err := ReadEvents(path, since, 0)
	if err != nil {
		return 0, err
	}

	for i, le := range events {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := p.Publish(ctx, le.Topic, le.Event); err != nil {
			return i, fmt.Errorf("failed to replay event %s: %w", le.Event.ID, err)
		}
	}
	return len(events), nil
}

// Close closes the log file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.encoder = nil
	if err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	return nil
}
