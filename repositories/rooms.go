package repositories

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	goerrors "errors"

	"room-relay/domain"
	"room-relay/errors"
)

type IRoomRepository interface {
	Load() domain.Collection
	Save(rooms domain.Collection) error
}

// RoomRepository keeps the whole collection in a single JSON file.
// Writes replace the file entirely; the collection worker is the only
// writer, so no locking is needed.
type RoomRepository struct {
	path string
	log  *slog.Logger
}

func NewRoomRepository(path string, log *slog.Logger) RoomRepository {
	return RoomRepository{path: path, log: log}
}

// Load reads the persisted collection. A missing file is first run;
// an unreadable or corrupt file falls back to the default room. Both
// cases seed a single-element collection rather than failing.
func (r RoomRepository) Load() domain.Collection {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !goerrors.Is(err, fs.ErrNotExist) {
			r.log.Error("Reading rooms file failed, seeding default", "path", r.path, "error", err)
		}
		return domain.DefaultCollection()
	}

	var rooms domain.Collection
	if err := json.Unmarshal(data, &rooms); err != nil {
		r.log.Error("Decoding rooms file failed, seeding default", "path", r.path, "error", err)
		return domain.DefaultCollection()
	}
	return rooms.Normalize()
}

func (r RoomRepository) Save(rooms domain.Collection) error {
	data, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}
	return nil
}
