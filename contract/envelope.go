package contract

import "room-relay/domain"

// Envelope types exchanged on the socket.
const (
	TypeInit   = "init"
	TypeUpdate = "update"
)

// Envelope wraps a full collection on the wire. Updates always carry
// the entire collection, never a delta.
type Envelope struct {
	Type string            `json:"type"`
	Data domain.Collection `json:"data"`
}
