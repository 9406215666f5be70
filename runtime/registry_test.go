package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"room-relay/domain/event"
)

type fakeSink struct {
	id string
}

func (s fakeSink) Consume(_ context.Context, _ event.DomainEvent) error {
	return nil
}

func TestRegistry_SubscribeAndCount(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	sink := fakeSink{id: "a"}

	// Given no session is connected
	req.Empty(registry.Sessions)
	req.Zero(registry.Count())

	// When a session subscribes
	registry.Subscribe(sessionID, sink)

	// Then
	req.Equal(1, registry.Count())
	req.Equal(sink, registry.Sessions[sessionID])
}

func TestRegistry_SinksExcludesSender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sinkA := fakeSink{id: "a"}
	sinkB := fakeSink{id: "b"}
	sinkC := fakeSink{id: "c"}

	registry.Subscribe("session-a", sinkA)
	registry.Subscribe("session-b", sinkB)
	registry.Subscribe("session-c", sinkC)

	sinks := registry.Sinks("session-a")
	req.Len(sinks, 2)
	req.NotContains(sinks, sinkA)
	req.Contains(sinks, sinkB)
	req.Contains(sinks, sinkC)

	// Empty origin excludes nobody
	req.Len(registry.Sinks(""), 3)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Subscribe("session-a", fakeSink{id: "a"})
	registry.Unsubscribe("session-a")

	req.Zero(registry.Count())
	req.Empty(registry.Sinks(""))

	// Unsubscribing an unknown session is harmless
	registry.Unsubscribe("session-x")
}
