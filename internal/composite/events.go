package composite

import (
	"sync"
	"time"

	"studio/internal/domain"
)

// EventType classifies messages published while a job runs.
type EventType string

const (
	EventState     EventType = "state"
	EventProgress  EventType = "progress"
	EventClipEnded EventType = "clip_ended"
	EventError     EventType = "error"
	EventArtifact  EventType = "artifact"
)

// Event is a sequenced job update for pollers.
type Event struct {
	Seq       int64                 `json:"seq"`
	Timestamp time.Time             `json:"timestamp"`
	JobID     string                `json:"job_id"`
	Type      EventType             `json:"type"`
	State     domain.CompositeState `json:"state,omitempty"`
	ClipIndex int                   `json:"clip_index"`
	Progress  float64               `json:"progress"`
	Message   string                `json:"message,omitempty"`
}

// EventBus keeps a bounded history of events and serves incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventBus{maxEvents: maxEvents, events: make([]Event, 0, maxEvents)}
}

// Publish assigns the next sequence number and appends the event.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	return event
}

// Since returns events with a sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.events))
	for _, e := range b.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}
