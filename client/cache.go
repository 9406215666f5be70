package client

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"

	goerrors "errors"

	"room-relay/domain"
)

// CacheState is what a session remembers across restarts: its replica,
// its current room and its username.
type CacheState struct {
	Rooms         domain.Collection `json:"rooms"`
	CurrentRoomID domain.RoomID     `json:"currentRoomId"`
	Username      string            `json:"username"`
}

// Cache persists CacheState in one JSON file, the session-side
// counterpart of the server's rooms file. Other processes may write
// it too; the session re-reads it on a timer while offline.
type Cache struct {
	path string
	log  *slog.Logger
}

func NewCache(path string, log *slog.Logger) *Cache {
	return &Cache{path: path, log: log}
}

func (c *Cache) Load() CacheState {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !goerrors.Is(err, fs.ErrNotExist) {
			c.log.Warn("Reading cache failed", "path", c.path, "error", err)
		}
		return CacheState{}
	}
	var state CacheState
	if err := json.Unmarshal(data, &state); err != nil {
		c.log.Warn("Decoding cache failed", "path", c.path, "error", err)
		return CacheState{}
	}
	return state
}

func (c *Cache) Save(state CacheState) {
	data, err := json.Marshal(state)
	if err != nil {
		c.log.Warn("Encoding cache failed", "error", err)
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		c.log.Warn("Writing cache failed", "path", c.path, "error", err)
	}
}
