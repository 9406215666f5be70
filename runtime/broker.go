package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"room-relay/contract"
	"room-relay/domain"
	"room-relay/domain/event"
	"room-relay/observability"
	"room-relay/repositories"
	"room-relay/runtime/workers"
)

var _ contract.IBroker = (*Broker)(nil)

// Broker is the single authoritative mutation and broadcast point.
// Sessions dispatch commands into one queue; the collection worker
// applies them in order, persists, and the fanout pushes the new
// state to everyone else.
type Broker struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   contract.IRegistry
	repository repositories.IRoomRepository
	monitor    *observability.Monitor

	commands chan domain.Command
	events   chan event.DomainEvent

	censor      func(string) string
	sinks       []contract.EventSink
	sinkTimeout time.Duration
	started     bool
}

func NewBroker(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	registry contract.IRegistry,
	repository repositories.IRoomRepository,
	monitor *observability.Monitor,
	bufferSize int,
	sinkTimeout time.Duration) *Broker {
	return &Broker{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		repository:  repository,
		monitor:     monitor,
		commands:    make(chan domain.Command, bufferSize),
		events:      make(chan event.DomainEvent, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

// WithCensor installs a masking pass applied to accepted message text.
func (b *Broker) WithCensor(censor func(string) string) *Broker {
	b.censor = censor
	return b
}

// Add registers permanent sinks receiving every domain event.
func (b *Broker) Add(sinks ...contract.EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sinks...)
}

// Dispatch queues a command without waiting for its result. A full
// queue drops the command with a warning; sessions recover through
// the next snapshot.
func (b *Broker) Dispatch(cmd domain.Command) {
	select {
	case b.commands <- cmd:
	default:
		b.log.Warn("Command queue full, dropping command")
		b.monitor.IncrDroppedCommands()
	}
}

// Do queues a command and waits for the apply and persistence result.
// REST handlers use it so a failed save can surface as a status code.
func (b *Broker) Do(ctx context.Context, cmd domain.Command) error {
	replier, ok := cmd.(domain.Replier)
	if !ok || replier.ReplyTo() == nil {
		return fmt.Errorf("command has no reply channel")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.commands <- cmd:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-replier.ReplyTo():
		return err
	}
}

// Snapshot returns a copy of the authoritative collection.
func (b *Broker) Snapshot(ctx context.Context) (domain.Collection, error) {
	reply := make(chan domain.Collection, 1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b.commands <- domain.SnapshotCommand{Reply: reply}:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rooms := <-reply:
		return rooms, nil
	}
}

// Start loads the persisted state, registers the workers and runs
// them under supervision until ctx is canceled.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("broker already started")
	}
	b.started = true

	initial := b.repository.Load()
	collectionWorker := workers.NewCollectionWorker(
		initial, b.commands, b.events, b.repository, b.censor, b.monitor, b.log)
	fanout := workers.NewEventFanout(b.log, b.registry, b.events, b.monitor, b.sinkTimeout).
		Add(b.sinks...)

	b.supervisor.Add(collectionWorker, fanout)

	b.log.Info("Starting broker and supervised workers", "rooms", len(initial))
	go b.supervisor.Run(ctx)
	return nil
}

// Stop cancels supervision; pending commands are abandoned.
func (b *Broker) Stop() {
	b.log.Info("Requesting broker shutdown")
	b.supervisor.Stop()
}
