package repositories

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"room-relay/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestRoomRepository_FirstRunSeedsDefault(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(filepath.Join(t.TempDir(), "rooms-data.json"), testLogger())

	rooms := repo.Load()

	req.Len(rooms, 1)
	req.Equal(domain.DefaultRoomID, rooms[0].ID)
	req.Equal("Default Room", rooms[0].Name)
	req.Empty(rooms[0].Messages)
}

func TestRoomRepository_RoundTrip(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(filepath.Join(t.TempDir(), "rooms-data.json"), testLogger())

	rooms := domain.DefaultCollection()
	_, err := rooms.Create("Lounge")
	req.NoError(err)
	_, err = rooms.SetMessage(domain.DefaultRoomID, "alice", "hello", time.Now())
	req.NoError(err)

	req.NoError(repo.Save(rooms))
	loaded := repo.Load()

	req.Equal(rooms, loaded)

	// save(load()) must not change content
	req.NoError(repo.Save(loaded))
	req.Equal(loaded, repo.Load())
}

func TestRoomRepository_CorruptFileFallsBack(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "rooms-data.json")
	req.NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	repo := NewRoomRepository(path, testLogger())
	rooms := repo.Load()

	req.Len(rooms, 1)
	req.Equal(domain.DefaultRoomID, rooms[0].ID)
}

func TestRoomRepository_LoadNormalizes(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "rooms-data.json")
	raw := `[{"id":"default","name":"Default Room","messages":[` +
		`{"username":"a","text":"old","timestamp":"2024-01-01T00:00:00Z"},` +
		`{"username":"b","text":"new","timestamp":"2024-01-01T00:01:00Z"}]}]`
	req.NoError(os.WriteFile(path, []byte(raw), 0o644))

	rooms := NewRoomRepository(path, testLogger()).Load()

	req.Len(rooms[0].Messages, 1)
	req.Equal("new", rooms[0].Messages[0].Text)
}
