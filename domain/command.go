package domain

// Command is a serialized mutation or query applied by the single
// collection worker. Arrival order is the total order.
type Command interface {
	command()
}

// Replier is implemented by commands whose caller waits for the apply
// and persistence result. Reply channels must be buffered.
type Replier interface {
	ReplyTo() chan error
}

// ReplaceCollectionCommand carries a full-replacement update from a
// session. Origin identifies the sender so the broadcast can skip it.
type ReplaceCollectionCommand struct {
	Origin string
	Rooms  Collection
	Reply  chan error
}

// SetMessageCommand sets the current message of one room.
type SetMessageCommand struct {
	Room     RoomID
	Username string
	Text     string
	Reply    chan error
}

// UpsertRoomCommand adds a room with a caller-supplied id, replacing
// any room already holding that id.
type UpsertRoomCommand struct {
	Room  Room
	Reply chan error
}

// ReplaceRoomCommand swaps an existing room for the given one.
type ReplaceRoomCommand struct {
	Room  Room
	Reply chan error
}

type RenameRoomCommand struct {
	Room  RoomID
	Name  string
	Reply chan error
}

type DeleteRoomCommand struct {
	Room  RoomID
	Reply chan error
}

// SnapshotCommand asks for a copy of the authoritative collection.
type SnapshotCommand struct {
	Reply chan Collection
}

func (ReplaceCollectionCommand) command() {}
func (SetMessageCommand) command()        {}
func (UpsertRoomCommand) command()        {}
func (ReplaceRoomCommand) command()       {}
func (RenameRoomCommand) command()        {}
func (DeleteRoomCommand) command()        {}
func (SnapshotCommand) command()          {}

func (c ReplaceCollectionCommand) ReplyTo() chan error { return c.Reply }
func (c SetMessageCommand) ReplyTo() chan error        { return c.Reply }
func (c UpsertRoomCommand) ReplyTo() chan error        { return c.Reply }
func (c ReplaceRoomCommand) ReplyTo() chan error       { return c.Reply }
func (c RenameRoomCommand) ReplyTo() chan error        { return c.Reply }
func (c DeleteRoomCommand) ReplyTo() chan error        { return c.Reply }
