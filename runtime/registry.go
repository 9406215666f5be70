// Package runtime serializes mutations through a single owning worker
// and propagates the resulting events. It orchestrates the system
// without containing domain rules.
package runtime

import (
	"sync"

	"room-relay/contract"
)

// Registry tracks connected sessions and their delivery sinks. Every
// session observes the whole collection, so there is no per-room
// membership to maintain.
type Registry struct {
	mu       sync.RWMutex
	Sessions map[string]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{Sessions: make(map[string]contract.EventSink)}
}

func (r *Registry) Subscribe(sessionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sessions[sessionID] = sink
}

func (r *Registry) Unsubscribe(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Sessions, sessionID)
}

// Sinks returns the sinks of every session except the named one. The
// exclusion is how an update avoids echoing back to its sender.
func (r *Registry) Sinks(except string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sinks []contract.EventSink
	for id, sink := range r.Sessions {
		if id == except {
			continue
		}
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Sessions)
}
