// Package projection builds local read models from observed events.
// It consumes, never emits.
package projection

import (
	"context"
	"sync"
	"time"

	"room-relay/domain/event"
)

type Entry struct {
	Room     string    `json:"room"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// Timeline retains the most recent accepted messages, newest last,
// bounded by limit. Safe for concurrent use: the fanout writes while
// the stats endpoint reads.
type Timeline struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

func NewTimeline(limit int) *Timeline {
	return &Timeline{limit: limit}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageAccepted)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{
		Room:     string(evt.Room),
		Username: evt.Username,
		Text:     evt.Text,
		At:       evt.At,
	})
	if t.limit > 0 && len(t.entries) > t.limit {
		t.entries = t.entries[len(t.entries)-t.limit:]
	}
	return nil
}

func (t *Timeline) Recent() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry{}, t.entries...)
}
