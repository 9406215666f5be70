package workers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"room-relay/contract"
	"room-relay/domain"
	"room-relay/domain/event"
	"room-relay/errors"
	"room-relay/observability"
	"room-relay/repositories"
)

var _ contract.Worker = (*CollectionWorker)(nil)

// CollectionWorker owns the authoritative collection. Every mutation
// and snapshot arrives as a command on one channel, so updates are
// applied in receipt order and last write wins.
type CollectionWorker struct {
	rooms      domain.Collection
	commands   chan domain.Command
	events     chan event.DomainEvent
	repository repositories.IRoomRepository
	censor     func(string) string
	monitor    *observability.Monitor
	log        *slog.Logger
}

func NewCollectionWorker(
	initial domain.Collection,
	commands chan domain.Command,
	events chan event.DomainEvent,
	repository repositories.IRoomRepository,
	censor func(string) string,
	monitor *observability.Monitor,
	log *slog.Logger) *CollectionWorker {
	return &CollectionWorker{
		rooms:      initial.Normalize(),
		commands:   commands,
		events:     events,
		repository: repository,
		censor:     censor,
		monitor:    monitor,
		log:        log,
	}
}

func (w *CollectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.handle(ctx, cmd)
		}
	}
}

func (w *CollectionWorker) handle(ctx context.Context, cmd domain.Command) {
	switch c := cmd.(type) {
	case domain.SnapshotCommand:
		select {
		case c.Reply <- w.rooms.Clone():
		default:
		}
		return

	case domain.ReplaceCollectionCommand:
		w.applyReplace(ctx, c)
		return

	case domain.SetMessageCommand:
		text := c.Text
		if w.censor != nil {
			text = w.censor(text)
		}
		msg, err := w.rooms.SetMessage(c.Room, c.Username, text, time.Now())
		if err != nil {
			reply(cmd, err)
			return
		}
		at, _ := time.Parse(time.RFC3339, msg.Timestamp)
		w.commit(ctx, cmd, "", event.MessageAccepted{
			Room: c.Room, Username: msg.Username, Text: msg.Text, At: at,
		})
		return

	case domain.UpsertRoomCommand:
		room, accepted := w.acceptRoom(c.Room, time.Now().UTC())
		if i, ok := w.rooms.Find(room.ID); ok {
			w.rooms[i] = room
		} else {
			w.rooms = append(w.rooms, room)
		}
		w.commit(ctx, cmd, "", accepted...)
		return

	case domain.ReplaceRoomCommand:
		i, ok := w.rooms.Find(c.Room.ID)
		if !ok {
			reply(cmd, errors.ErrRoomNotFound)
			return
		}
		room, accepted := w.acceptRoom(c.Room, time.Now().UTC())
		w.rooms[i] = room
		w.commit(ctx, cmd, "", accepted...)
		return

	case domain.RenameRoomCommand:
		if err := w.rooms.Rename(c.Room, c.Name); err != nil {
			reply(cmd, err)
			return
		}
		w.commit(ctx, cmd, "")
		return

	case domain.DeleteRoomCommand:
		if err := w.rooms.Delete(c.Room); err != nil {
			reply(cmd, err)
			return
		}
		w.commit(ctx, cmd, "")
		return

	default:
		w.log.Warn("Unknown command dropped", "command", cmd)
	}
}

// applyReplace installs a full-replacement collection from a session.
// The incoming copy is normalized, new messages are stamped at
// acceptance time, and rooms whose content did not change keep the
// authoritative stamp rather than the sender's local one.
func (w *CollectionWorker) applyReplace(ctx context.Context, cmd domain.ReplaceCollectionCommand) {
	now := time.Now().UTC()
	next := make(domain.Collection, 0, len(cmd.Rooms))
	var accepted []event.DomainEvent

	for _, room := range cmd.Rooms {
		acceptedRoom, events := w.acceptRoom(room, now)
		next = append(next, acceptedRoom)
		accepted = append(accepted, events...)
	}

	w.rooms = next
	w.commit(ctx, cmd, cmd.Origin, accepted...)
}

// acceptRoom normalizes a caller-supplied room and stamps its message
// if it differs from what the store currently holds for that id.
func (w *CollectionWorker) acceptRoom(room domain.Room, now time.Time) (domain.Room, []event.DomainEvent) {
	normalized := domain.Collection{room}.Normalize()[0]
	incoming, ok := normalized.Current()
	if !ok {
		return normalized, nil
	}

	var previous domain.Message
	var hasPrevious bool
	if j, found := w.rooms.Find(normalized.ID); found {
		previous, hasPrevious = w.rooms[j].Current()
	}
	if hasPrevious && previous.Username == incoming.Username && previous.Text == incoming.Text {
		normalized.Messages = []domain.Message{previous}
		return normalized, nil
	}
	if strings.TrimSpace(incoming.Text) == "" {
		normalized.Messages = []domain.Message{}
		if hasPrevious {
			normalized.Messages = []domain.Message{previous}
		}
		return normalized, nil
	}

	text := incoming.Text
	if w.censor != nil {
		text = w.censor(text)
	}
	stamped := domain.NewMessage(incoming.Username, text, now)
	normalized.Messages = []domain.Message{stamped}
	return normalized, []event.DomainEvent{event.MessageAccepted{
		Room: normalized.ID, Username: stamped.Username, Text: stamped.Text, At: now,
	}}
}

// commit persists the new state, answers the caller and emits events.
// A persistence failure is reported and counted but never blocks the
// broadcast: in-memory state already moved on.
func (w *CollectionWorker) commit(ctx context.Context, cmd domain.Command, origin string, accepted ...event.DomainEvent) {
	err := w.repository.Save(w.rooms)
	if err != nil {
		w.log.Error("Persisting rooms failed, broadcasting anyway", "error", err)
		w.monitor.IncrPersistFailures()
	}
	reply(cmd, err)
	w.monitor.IncrUpdatesApplied()

	for _, e := range accepted {
		w.emit(ctx, e)
	}
	w.emit(ctx, event.CollectionReplaced{Origin: origin, Rooms: w.rooms.Clone(), At: time.Now().UTC()})
}

func (w *CollectionWorker) emit(ctx context.Context, e event.DomainEvent) {
	select {
	case <-ctx.Done():
	case w.events <- e:
	}
}

// reply answers a waiting caller, if any. Reply channels are buffered,
// the send must never park the worker.
func reply(cmd domain.Command, err error) {
	r, ok := cmd.(domain.Replier)
	if !ok || r.ReplyTo() == nil {
		return
	}
	select {
	case r.ReplyTo() <- err:
	default:
	}
}
