package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Type names a job lifecycle transition.
type Type string

const (
	TypeJobQueued    Type = "job_queued"
	TypeJobStarted   Type = "job_started"
	TypeJobCompleted Type = "job_completed"
	TypeJobFailed    Type = "job_failed"
	TypeJobCancelled Type = "job_cancelled"
	TypeJobReclaimed Type = "job_reclaimed"
)

// Event is the JSON document published for each transition.
type Event struct {
	Type    Type      `json:"type"`
	JobID   string    `json:"job_id"`
	Status  string    `json:"status"`
	Title   string    `json:"title,omitempty"`
	Percent int       `json:"percent"`
	Time    time.Time `json:"time"`
}

// Encode renders the wire form, stamping Time when unset.
func (e Event) Encode() ([]byte, error) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	return json.Marshal(e)
}

// Publisher fans lifecycle events out to external subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Memory keeps published events in order. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types returns the published event types for jobID, in order.
func (m *Memory) Types(jobID string) []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Type
	for _, ev := range m.events {
		if ev.JobID == jobID {
			out = append(out, ev.Type)
		}
	}
	return out
}
