package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventLogger records audit entries for hub activity. Implementations must
// tolerate being called best-effort; callers ignore their errors.
type EventLogger interface {
	LogEvent(event string, metadata map[string]any, userID string) error
}

// Telemetry emits anonymous usage events.
type Telemetry interface {
	Send(event string, properties map[string]any) error
}

// LogEntry is one recorded audit event.
type LogEntry struct {
	ID         string         `json:"id"`
	Event      string         `json:"event"`
	Metadata   map[string]any `json:"metadata"`
	UserID     string         `json:"userId"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// MemoryEventLog keeps entries in memory; the host swaps in its own sink.
type MemoryEventLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{}
}

func (l *MemoryEventLog) LogEvent(event string, metadata map[string]any, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{
		ID:         uuid.NewString(),
		Event:      event,
		Metadata:   metadata,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// Entries returns a copy of everything logged so far.
func (l *MemoryEventLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// NopTelemetry drops every event.
type NopTelemetry struct{}

func (NopTelemetry) Send(string, map[string]any) error { return nil }
