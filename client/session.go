package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"room-relay/contract"
	"room-relay/domain"
)

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// Source tags where a reconciliation came from. All transports feed
// the same reconcile path.
type Source string

const (
	SourceInit   Source = "init"
	SourceUpdate Source = "update"
	SourcePoll   Source = "poll"
	SourceCache  Source = "cache"
)

// Snapshot is what the render hook receives after every change.
type Snapshot struct {
	Mode     Mode
	Rooms    domain.Collection
	Current  domain.RoomID
	Username string
}

// Session maintains a local replica of the collection. ONLINE it rides
// the socket; OFFLINE it polls REST and watches the cache file, and
// keeps accepting local mutations either way. Mutations apply locally
// first and are pushed as a full-collection update when connected.
//
// The change hook runs on the session's goroutines and must not call
// back into the session.
type Session struct {
	cfg      Config
	log      *slog.Logger
	cache    *Cache
	httpc    *http.Client
	onChange func(Snapshot)

	mu         sync.Mutex
	rooms      domain.Collection
	current    domain.RoomID
	username   string
	mode       Mode
	conn       *websocket.Conn
	dirty      bool
	connecting bool
	reconnect  *time.Timer

	ctx context.Context
}

func NewSession(cfg Config, log *slog.Logger, onChange func(Snapshot)) *Session {
	return &Session{
		cfg:      cfg,
		log:      log,
		cache:    NewCache(cfg.CachePath, log),
		httpc:    &http.Client{Timeout: 10 * time.Second},
		onChange: onChange,
		mode:     ModeOffline,
	}
}

// Run restores state from the cache, attempts the first handshake and
// drives the polling and cache timers until ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx

	state := s.cache.Load()
	s.mu.Lock()
	s.rooms = state.Rooms.Normalize()
	s.current = state.CurrentRoomID
	s.username = state.Username
	if s.cfg.Username != "" {
		s.username = s.cfg.Username
	}
	s.resolveCurrentLocked()
	s.notifyLocked()
	s.mu.Unlock()

	s.connect()

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	cacheSync := time.NewTicker(s.cfg.CacheSyncInterval)
	defer cacheSync.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-poll.C:
			s.pollOnce(ctx)
		case <-cacheSync.C:
			s.reconcileCache()
		}
	}
}

// pollOnce is the REST fallback: while offline, fetch a snapshot and
// retry the handshake.
func (s *Session) pollOnce(ctx context.Context) {
	if s.Mode() == ModeOnline {
		return
	}
	if rooms, err := s.fetchRooms(ctx); err == nil {
		s.reconcile(SourcePoll, rooms)
	} else {
		s.log.Debug("Polling failed", "error", err)
	}
	s.connect()
}

// reconcileCache adopts the cache file when it drifted from the
// replica, simulating another tab editing it.
func (s *Session) reconcileCache() {
	if s.Mode() == ModeOnline {
		return
	}
	state := s.cache.Load()
	s.mu.Lock()
	same := reflect.DeepEqual(state.Rooms.Normalize(), s.rooms)
	s.mu.Unlock()
	if !same {
		s.reconcile(SourceCache, state.Rooms)
	}
}

// connect attempts the handshake unless one is live or in flight.
func (s *Session) connect() {
	s.mu.Lock()
	if s.conn != nil || s.connecting || (s.ctx != nil && s.ctx.Err() != nil) {
		s.mu.Unlock()
		return
	}
	s.connecting = true
	s.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(fmt.Sprintf("ws://%s/ws", s.cfg.ServerAddr), nil)

	s.mu.Lock()
	s.connecting = false
	if err != nil {
		s.mu.Unlock()
		s.log.Debug("Handshake failed", "error", err)
		s.scheduleReconnect()
		return
	}
	s.conn = conn
	s.mode = ModeOnline
	s.notifyLocked()
	s.mu.Unlock()

	s.log.Info("Connected", "server", s.cfg.ServerAddr)
	go s.readLoop(conn)
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		var envelope contract.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			s.log.Debug("Socket closed", "error", err)
			break
		}
		switch envelope.Type {
		case contract.TypeInit:
			s.reconcile(SourceInit, envelope.Data)
		case contract.TypeUpdate:
			s.reconcile(SourceUpdate, envelope.Data)
		default:
			s.log.Debug("Ignoring frame", "type", envelope.Type)
		}
	}
	s.dropConn(conn)
	s.scheduleReconnect()
}

func (s *Session) dropConn(conn *websocket.Conn) {
	_ = conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.mode = ModeOffline
		s.notifyLocked()
	}
	s.mu.Unlock()
}

// scheduleReconnect arms the retry timer, replacing any pending one so
// timers never accumulate.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil && s.ctx.Err() != nil {
		return
	}
	if s.reconnect != nil {
		s.reconnect.Stop()
	}
	s.reconnect = time.AfterFunc(s.cfg.ReconnectDelay, s.connect)
}

// reconcile is the single merge path for every source: adopt the
// normalized collection, re-resolve the current room, persist, render.
// The init snapshot after a reconnect is the one exception: when edits
// were made offline, the local replica wins and is flushed instead, so
// a stale server snapshot never erases them.
func (s *Session) reconcile(source Source, rooms domain.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source == SourceInit && s.dirty && s.conn != nil {
		s.log.Info("Flushing offline edits", "rooms", len(s.rooms))
		s.pushLocked()
		return
	}
	s.rooms = rooms.Normalize()
	s.resolveCurrentLocked()
	s.saveLocked()
	s.notifyLocked()
	s.log.Debug("Reconciled", "source", source, "rooms", len(s.rooms))
}

// resolveCurrentLocked keeps the remembered room when it still exists,
// otherwise lands on the first room.
func (s *Session) resolveCurrentLocked() {
	if _, ok := s.rooms.Find(s.current); ok {
		return
	}
	s.current = ""
	if len(s.rooms) > 0 {
		s.current = s.rooms[0].ID
	}
}

// PostMessage sets the current room's message.
func (s *Session) PostMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.rooms.SetMessage(s.current, s.username, text, time.Now()); err != nil {
		return err
	}
	s.pushLocked()
	return nil
}

// CreateRoom adds a room and makes it current.
func (s *Session) CreateRoom(name string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, err := s.rooms.Create(name)
	if err != nil {
		return domain.Room{}, err
	}
	s.current = room.ID
	s.pushLocked()
	return room, nil
}

func (s *Session) RenameRoom(id domain.RoomID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rooms.Rename(id, name); err != nil {
		return err
	}
	s.pushLocked()
	return nil
}

// DeleteRoom removes a room; deleting the current room falls back to
// the default room, else the first remaining one.
func (s *Session) DeleteRoom(id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rooms.Delete(id); err != nil {
		return err
	}
	if s.current == id {
		s.current, _ = s.rooms.Fallback(s.current)
	}
	s.pushLocked()
	return nil
}

func (s *Session) SetCurrent(id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms.Find(id); !ok {
		return fmt.Errorf("room %s not in replica", id)
	}
	s.current = id
	s.saveLocked()
	s.notifyLocked()
	return nil
}

func (s *Session) SetUsername(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = name
	s.saveLocked()
	s.notifyLocked()
}

// pushLocked finishes every local mutation: persist the cache, render,
// and if online send the whole collection as an update. Offline edits
// mark the replica dirty for the flush-on-reconnect.
func (s *Session) pushLocked() {
	s.saveLocked()
	s.notifyLocked()
	if s.conn == nil {
		s.dirty = true
		return
	}
	if err := s.conn.WriteJSON(contract.Envelope{Type: contract.TypeUpdate, Data: s.rooms.Clone()}); err != nil {
		s.log.Warn("Pushing update failed", "error", err)
		_ = s.conn.Close()
		s.conn = nil
		s.mode = ModeOffline
		s.dirty = true
		s.notifyLocked()
		go s.scheduleReconnect()
		return
	}
	s.dirty = false
}

func (s *Session) saveLocked() {
	s.cache.Save(CacheState{
		Rooms:         s.rooms.Clone(),
		CurrentRoomID: s.current,
		Username:      s.username,
	})
}

func (s *Session) notifyLocked() {
	if s.onChange == nil {
		return
	}
	s.onChange(Snapshot{
		Mode:     s.mode,
		Rooms:    s.rooms.Clone(),
		Current:  s.current,
		Username: s.username,
	})
}

func (s *Session) fetchRooms(ctx context.Context) (domain.Collection, error) {
	url := fmt.Sprintf("http://%s/api/rooms", s.cfg.ServerAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot returned status %d", resp.StatusCode)
	}
	var rooms domain.Collection
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reconnect != nil {
		s.reconnect.Stop()
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mode = ModeOffline
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Rooms() domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Clone()
}

func (s *Session) Current() domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}
