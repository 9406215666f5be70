package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageArchive interface {
	Store(entry ArchiveEntry) error
	Recent(room string, limit int) ([]ArchiveEntry, error)
}

// MessageArchive keeps a best-effort trail of accepted messages in
// BadgerDB. The sync path never depends on it: the room store retains
// one message per room, the archive remembers what passed through.
type MessageArchive struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageArchive(db *badger.DB, log *slog.Logger) MessageArchive {
	return MessageArchive{db: db, log: log}
}

type ArchiveEntry struct {
	ID       uuid.UUID `json:"id"`
	Room     string    `json:"room"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	Lang     string    `json:"lang"`
	At       time.Time `json:"at"`
}

// Store persists one entry. The key is "msg:{room}:{timestamp_padded}:{uuid}":
//  1. 19-digit zero padding makes lexicographical order chronological.
//  2. The UUID disambiguates two messages accepted in the same nanosecond.
func (a MessageArchive) Store(entry ArchiveEntry) error {
	key := fmt.Sprintf("msg:%s:%019d:%s", entry.Room, entry.At.UnixNano(), entry.ID)
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Recent returns up to limit entries for a room, newest first, using a
// reverse prefix scan over the time-ordered keys.
func (a MessageArchive) Recent(room string, limit int) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	err := a.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", room))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this prefix
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(entries) == limit {
				a.log.Debug(fmt.Sprintf("Archive scan stopped at %d entries", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var entry ArchiveEntry
				if err := json.Unmarshal(value, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}
