package workers

import (
	"context"
	"log/slog"
	"time"

	"room-relay/contract"
	"room-relay/domain/event"
	"room-relay/observability"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout delivers domain events to permanent sinks and, for
// collection replacements, to every registered session except the
// origin. Best-effort: no delivery guarantee, no retry, no ordering
// across sessions.
type EventFanout struct {
	log         *slog.Logger
	registry    contract.IRegistry
	events      chan event.DomainEvent
	sinks       []contract.EventSink
	monitor     *observability.Monitor
	sinkTimeout time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	registry contract.IRegistry,
	events chan event.DomainEvent,
	monitor *observability.Monitor,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		registry:    registry,
		events:      events,
		monitor:     monitor,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout feeds one event to every consumer, each under its own
// timeout so a stuck sink cannot stall the pipeline.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		w.consume(ctx, sink, evt)
	}

	replaced, ok := evt.(event.CollectionReplaced)
	if !ok {
		return
	}
	for _, sink := range w.registry.Sinks(replaced.Origin) {
		w.consume(ctx, sink, evt)
		w.monitor.IncrBroadcasts()
	}
}

func (w *EventFanout) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.log.Warn("Sink rejected event", "error", err)
	}
}
