package repositories

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// setupTestDB initializes a temporary Badger instance for testing
func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMessageArchive_StoreAndRecent(t *testing.T) {
	req := require.New(t)
	archive := NewMessageArchive(setupTestDB(t), testLogger())

	base := time.Now().UTC()
	for i, text := range []string{"first", "second", "third"} {
		err := archive.Store(ArchiveEntry{
			ID:       uuid.New(),
			Room:     "default",
			Username: "alice",
			Text:     text,
			At:       base.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	// Another room must not bleed into the scan
	req.NoError(archive.Store(ArchiveEntry{
		ID:   uuid.New(),
		Room: "room-2",
		Text: "elsewhere",
		At:   base,
	}))

	entries, err := archive.Recent("default", 10)
	req.NoError(err)
	req.Len(entries, 3)
	req.Equal("third", entries[0].Text)
	req.Equal("first", entries[2].Text)

	limited, err := archive.Recent("default", 2)
	req.NoError(err)
	req.Len(limited, 2)
	req.Equal("third", limited[0].Text)

	empty, err := archive.Recent("missing", 10)
	req.NoError(err)
	req.Empty(empty)
}
