package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"room-relay/errors"
)

// Collection is the ordered set of rooms, insertion order = creation order.
// The broker owns the authoritative copy; every session holds a replica.
type Collection []Room

// DefaultCollection is the first-run state.
func DefaultCollection() Collection {
	return Collection{{ID: DefaultRoomID, Name: "Default Room", Messages: []Message{}}}
}

// Normalize deep-copies the collection and truncates every room to its
// last message. History is silently discarded: last write wins.
// Normalize is idempotent.
func (c Collection) Normalize() Collection {
	return lo.Map(c, func(r Room, _ int) Room {
		out := r
		out.Messages = []Message{}
		if n := len(r.Messages); n > 0 {
			out.Messages = []Message{r.Messages[n-1]}
		}
		return out
	})
}

// Clone returns an independent copy, messages included.
func (c Collection) Clone() Collection {
	return lo.Map(c, func(r Room, _ int) Room {
		out := r
		out.Messages = append([]Message{}, r.Messages...)
		return out
	})
}

func (c Collection) Find(id RoomID) (int, bool) {
	for i, r := range c {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Create appends a new room with a generated id.
func (c *Collection) Create(name string) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Room{}, errors.ErrBlankRoomName
	}
	room := NewRoom(name)
	*c = append(*c, room)
	return room, nil
}

func (c Collection) Rename(id RoomID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.ErrBlankRoomName
	}
	i, ok := c.Find(id)
	if !ok {
		return errors.ErrRoomNotFound
	}
	if c[i].Protected() {
		return errors.ErrProtectedRoom
	}
	c[i].Name = name
	return nil
}

func (c *Collection) Delete(id RoomID) error {
	i, ok := c.Find(id)
	if !ok {
		return errors.ErrRoomNotFound
	}
	if (*c)[i].Protected() {
		return errors.ErrProtectedRoom
	}
	*c = append((*c)[:i], (*c)[i+1:]...)
	return nil
}

// SetMessage replaces the room's current message. There is no append
// history to preserve, so replacement is the one explicit operation.
func (c Collection) SetMessage(id RoomID, username, text string, at time.Time) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, errors.ErrBlankMessage
	}
	i, ok := c.Find(id)
	if !ok {
		return Message{}, errors.ErrRoomNotFound
	}
	msg := NewMessage(username, text, at)
	c[i].Messages = []Message{msg}
	return msg, nil
}

// Fallback picks the room a session should land on when its current
// room is gone: the protected default if present, else the first room.
func (c Collection) Fallback(current RoomID) (RoomID, bool) {
	if _, ok := c.Find(current); ok {
		return current, true
	}
	if _, ok := c.Find(DefaultRoomID); ok {
		return DefaultRoomID, true
	}
	if len(c) > 0 {
		return c[0].ID, true
	}
	return "", false
}
