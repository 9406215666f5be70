package contract

import (
	"context"
	"reflect"

	"room-relay/domain"
	"room-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName resolves the type name of a worker for logs, avoiding
// manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	Subscribe(sessionID string, sink EventSink)
	Unsubscribe(sessionID string)
	Sinks(except string) []EventSink
	Count() int
}

type IBroker interface {
	Dispatch(cmd domain.Command)
	Do(ctx context.Context, cmd domain.Command) error
	Snapshot(ctx context.Context) (domain.Collection, error)
	Start(ctx context.Context) error
	Stop()
}
