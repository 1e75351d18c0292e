package metrics

import "time"

// EventKind discriminates the closed set of event variants. The dispatch in
// Collector.RecordEvent matches every kind exhaustively; adding a kind
// requires adding a handler.
type EventKind string

const (
	EventAgent     EventKind = "agent"
	EventPortal    EventKind = "portal"
	EventExtension EventKind = "extension"
	EventMemory    EventKind = "memory"
	EventHealth    EventKind = "health"
	EventSystem    EventKind = "system"
)

// EventStatus is the outcome carried by an event.
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailed  EventStatus = "failed"
)

// Event is the sole ingress shape for domain activity. Every event maps to
// metric mutations and, optionally, a trace annotation.
//
// DurationMs of zero means no duration was measured. Model and TokensUsed
// are meaningful for portal events only.
type Event struct {
	Kind       EventKind
	EntityID   string
	Operation  string
	DurationMs float64
	Value      float64
	Status     EventStatus
	Model      string
	TokensUsed int
	Timestamp  time.Time
	Metadata   map[string]any
}

// Failed reports whether the event carries a failure outcome.
func (e Event) Failed() bool {
	return e.Status == StatusFailed
}
