package event

import (
	"time"

	"room-relay/domain"
)

type DomainEvent interface {
	OccurredAt() time.Time
}

// CollectionReplaced is emitted after every accepted mutation. Origin
// is the session that caused it; broadcast skips that session.
type CollectionReplaced struct {
	Origin string
	Rooms  domain.Collection
	At     time.Time
}

func (e CollectionReplaced) OccurredAt() time.Time { return e.At }

// MessageAccepted is emitted once per message the broker stamped in.
type MessageAccepted struct {
	Room     domain.RoomID
	Username string
	Text     string
	At       time.Time
}

func (e MessageAccepted) OccurredAt() time.Time { return e.At }
