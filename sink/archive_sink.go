// Package sink holds event consumers with side effects outside the
// sync path.
package sink

import (
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"room-relay/domain/event"
	"room-relay/repositories"
)

// ArchiveSink stores every accepted message in the Badger archive,
// tagged with its detected language. Failures are the sink's problem,
// never the broker's.
type ArchiveSink struct {
	archive repositories.IMessageArchive
	log     *slog.Logger
}

func NewArchiveSink(archive repositories.IMessageArchive, log *slog.Logger) ArchiveSink {
	return ArchiveSink{archive: archive, log: log}
}

func (s ArchiveSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageAccepted)
	if !ok {
		return nil
	}
	info := whatlanggo.Detect(evt.Text)
	err := s.archive.Store(repositories.ArchiveEntry{
		ID:       uuid.New(),
		Room:     string(evt.Room),
		Username: evt.Username,
		Text:     evt.Text,
		Lang:     info.Lang.String(),
		At:       evt.At,
	})
	if err != nil {
		s.log.Error("Archiving message failed", "room", evt.Room, "error", err)
	}
	return err
}
