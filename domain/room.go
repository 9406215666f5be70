package domain

import (
	"fmt"
	"time"
)

type RoomID string

// DefaultRoomID marks the protected room that normal flows
// can neither delete nor rename.
const DefaultRoomID RoomID = "default"

type Room struct {
	ID       RoomID    `json:"id"`
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}

// NewRoom creates an empty room with a time-based id, unique enough
// at this scale.
func NewRoom(name string) Room {
	return Room{
		ID:       RoomID(fmt.Sprintf("room-%d", time.Now().UnixNano())),
		Name:     name,
		Messages: []Message{},
	}
}

func (r Room) Protected() bool {
	return r.ID == DefaultRoomID
}

// Current returns the room's retained message, if any.
func (r Room) Current() (Message, bool) {
	if len(r.Messages) == 0 {
		return Message{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}
