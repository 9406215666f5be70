// Package domain contains core concepts of the room relay.
// Rooms, messages and the collection rules live here; transports
// and persistence only move these values around.
package domain

import "time"

// AnonymousUser is substituted when a message carries no username.
const AnonymousUser = "Anonymous"

// Message is the single current content of a room.
// Timestamp is an RFC 3339 string because that is the wire and file format.
type Message struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewMessage builds an accepted message stamped at the given time.
func NewMessage(username, text string, at time.Time) Message {
	if username == "" {
		username = AnonymousUser
	}
	return Message{
		Username:  username,
		Text:      text,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}
