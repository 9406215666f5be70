package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"room-relay/domain"
	"room-relay/observability"
	"room-relay/projection"
	"room-relay/repositories"
	"room-relay/runtime"
	"room-relay/runtime/workers"
	"room-relay/transport"
)

func newRelayRouter(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := repositories.NewRoomRepository(filepath.Join(t.TempDir(), "rooms-data.json"), log)
	registry := runtime.NewRegistry()
	monitor := observability.NewMonitor(log)
	timeline := projection.NewTimeline(10)

	broker := runtime.NewBroker(log, workers.NewSupervisor(log), registry, repo, monitor, 16, time.Second)
	broker.Add(timeline)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, broker.Start(ctx))
	t.Cleanup(broker.Stop)

	router := transport.NewAPI(log, broker, monitor, timeline).Router()
	transport.NewGate(log, broker, registry, monitor, 16).Register(router)
	return router
}

func startRelay(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(newRelayRouter(t))
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

func testConfig(t *testing.T, addr string) Config {
	t.Helper()
	return Config{
		ServerAddr:        addr,
		CachePath:         filepath.Join(t.TempDir(), "rooms-cache.json"),
		ReconnectDelay:    100 * time.Millisecond,
		PollInterval:      100 * time.Millisecond,
		CacheSyncInterval: 100 * time.Millisecond,
	}
}

func startSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	session := NewSession(cfg, log, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = session.Run(ctx) }()
	return session
}

func seedCache(t *testing.T, cfg Config, state CacheState) {
	t.Helper()
	data, err := json.Marshal(state)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.CachePath, data, 0o644))
}

func TestSessionConnectsAndAdoptsSnapshot(t *testing.T) {
	req := require.New(t)
	session := startSession(t, testConfig(t, startRelay(t)))

	req.Eventually(func() bool {
		return session.Mode() == ModeOnline && len(session.Rooms()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	rooms := session.Rooms()
	req.Equal(domain.DefaultRoomID, rooms[0].ID)
	req.Equal(domain.DefaultRoomID, session.Current())
}

func TestSessionPostReachesOtherSessions(t *testing.T) {
	req := require.New(t)
	addr := startRelay(t)

	alice := startSession(t, func() Config {
		cfg := testConfig(t, addr)
		cfg.Username = "alice"
		return cfg
	}())
	bob := startSession(t, testConfig(t, addr))

	req.Eventually(func() bool {
		return alice.Mode() == ModeOnline && bob.Mode() == ModeOnline &&
			len(alice.Rooms()) == 1 && len(bob.Rooms()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	req.NoError(alice.PostMessage("hello from alice"))

	req.Eventually(func() bool {
		rooms := bob.Rooms()
		msg, ok := rooms[0].Current()
		return ok && msg.Text == "hello from alice" && msg.Username == "alice"
	}, 3*time.Second, 20*time.Millisecond)

	// Alice keeps her local copy without waiting for an echo.
	msg, ok := alice.Rooms()[0].Current()
	req.True(ok)
	req.Equal("hello from alice", msg.Text)
}

func TestSessionOfflineMutationsAndFallback(t *testing.T) {
	req := require.New(t)
	cfg := testConfig(t, "127.0.0.1:1")
	seedCache(t, cfg, CacheState{
		Rooms: domain.Collection{
			{ID: domain.DefaultRoomID, Name: "Default", Messages: []domain.Message{}},
			{ID: "ops", Name: "Ops", Messages: []domain.Message{}},
		},
		CurrentRoomID: "ops",
		Username:      "carol",
	})

	session := startSession(t, cfg)
	req.Eventually(func() bool { return len(session.Rooms()) == 2 }, 3*time.Second, 20*time.Millisecond)

	req.Equal(ModeOffline, session.Mode())
	req.Equal(domain.RoomID("ops"), session.Current())
	req.NoError(session.PostMessage("stored while offline"))

	// Deleting the current room lands back on the default room.
	req.NoError(session.DeleteRoom("ops"))
	req.Equal(domain.DefaultRoomID, session.Current())
	req.Error(session.DeleteRoom(domain.DefaultRoomID))

	cache := NewCache(cfg.CachePath, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	state := cache.Load()
	req.Len(state.Rooms, 1)
	req.Equal(domain.DefaultRoomID, state.CurrentRoomID)
	req.Equal("carol", state.Username)
}

func TestSessionFlushesOfflineEditsOnReconnect(t *testing.T) {
	req := require.New(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	router := newRelayRouter(t)

	cfg := testConfig(t, listener.Addr().String())
	cfg.Username = "dave"
	seedCache(t, cfg, CacheState{Rooms: domain.DefaultCollection()})

	session := startSession(t, cfg)
	req.Eventually(func() bool { return len(session.Rooms()) == 1 }, 3*time.Second, 20*time.Millisecond)
	req.NoError(session.PostMessage("written before the relay was up"))

	// Only now start serving; the pending handshake completes and the
	// session flushes its offline edit.
	server := &http.Server{Handler: router}
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(func() { _ = server.Close() })

	req.Eventually(func() bool { return session.Mode() == ModeOnline }, 6*time.Second, 20*time.Millisecond)

	req.Eventually(func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/api/rooms")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var rooms domain.Collection
		if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
			return false
		}
		msg, ok := rooms[0].Current()
		return ok && msg.Text == "written before the relay was up" && msg.Username == "dave"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestReconcileResolvesMissingCurrent(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	session := NewSession(testConfig(t, "127.0.0.1:1"), log, nil)
	session.current = "gone"

	session.reconcile(SourcePoll, domain.Collection{
		{ID: "first", Name: "First", Messages: []domain.Message{}},
		{ID: "second", Name: "Second", Messages: []domain.Message{}},
	})

	req.Equal(domain.RoomID("first"), session.Current())
	req.Len(session.Rooms(), 2)
}
