package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"room-relay/contract"
	"room-relay/domain"
	"room-relay/domain/event"
	"room-relay/observability"
)

// Gate upgrades connections, hands each one an init snapshot and
// registers it for broadcasts. Inbound updates are dispatched to the
// broker; malformed frames are logged and dropped, the connection
// stays alive.
type Gate struct {
	log         *slog.Logger
	broker      contract.IBroker
	registry    contract.IRegistry
	monitor     *observability.Monitor
	upgrader    websocket.Upgrader
	writeBuffer int
}

func NewGate(log *slog.Logger, broker contract.IBroker, registry contract.IRegistry,
	monitor *observability.Monitor, writeBuffer int) *Gate {
	return &Gate{
		log:      log,
		broker:   broker,
		registry: registry,
		monitor:  monitor,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeBuffer: writeBuffer,
	}
}

// Register mounts the gate on the shared router.
func (g *Gate) Register(r *mux.Router) {
	r.HandleFunc("/ws", g.Handle)
}

func (g *Gate) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	sessionID := uuid.NewString()
	g.log.Info("Client connected", "session", sessionID, "remote", r.RemoteAddr)

	session := newWSSession(sessionID, conn, g.writeBuffer, g.log)
	go session.writePump()

	rooms, err := g.broker.Snapshot(r.Context())
	if err != nil {
		g.log.Error("Snapshot for new session failed", "session", sessionID, "error", err)
		session.close()
		return
	}
	_ = session.push(contract.Envelope{Type: contract.TypeInit, Data: rooms})

	g.registry.Subscribe(sessionID, session)
	g.monitor.SessionOpened()
	defer func() {
		g.registry.Unsubscribe(sessionID)
		g.monitor.SessionClosed()
		session.close()
		g.log.Info("Client disconnected", "session", sessionID)
	}()

	g.readLoop(sessionID, conn)
}

func (g *Gate) readLoop(sessionID string, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var envelope contract.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			g.log.Warn("Malformed frame dropped", "session", sessionID, "error", err)
			g.monitor.IncrParseErrors()
			continue
		}
		if envelope.Type != contract.TypeUpdate {
			g.log.Debug("Ignoring frame", "session", sessionID, "type", envelope.Type)
			continue
		}
		g.broker.Dispatch(domain.ReplaceCollectionCommand{
			Origin: sessionID,
			Rooms:  envelope.Data,
		})
	}
}

// wsSession adapts one connection into an event sink. Writes go
// through a buffered channel so a slow consumer sheds load instead of
// stalling the fanout.
type wsSession struct {
	id       string
	conn     *websocket.Conn
	outbound chan contract.Envelope
	done     chan struct{}
	log      *slog.Logger
}

func newWSSession(id string, conn *websocket.Conn, buffer int, log *slog.Logger) *wsSession {
	return &wsSession{
		id:       id,
		conn:     conn,
		outbound: make(chan contract.Envelope, buffer),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (s *wsSession) Consume(_ context.Context, e event.DomainEvent) error {
	replaced, ok := e.(event.CollectionReplaced)
	if !ok {
		return nil
	}
	return s.push(contract.Envelope{Type: contract.TypeUpdate, Data: replaced.Rooms})
}

func (s *wsSession) push(envelope contract.Envelope) error {
	select {
	case s.outbound <- envelope:
		return nil
	case <-s.done:
		return fmt.Errorf("session %s closed", s.id)
	default:
		return fmt.Errorf("session %s write buffer full", s.id)
	}
}

func (s *wsSession) writePump() {
	for {
		select {
		case envelope := <-s.outbound:
			if err := s.conn.WriteJSON(envelope); err != nil {
				s.log.Debug("Write failed", "session", s.id, "error", err)
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *wsSession) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	_ = s.conn.Close()
}
