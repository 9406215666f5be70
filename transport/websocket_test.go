package transport

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"room-relay/contract"
	"room-relay/domain"
)

func dialWS(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) contract.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope contract.Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func TestGate_InitSnapshotOnConnect(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	conn := dialWS(t, server.URL)
	envelope := readEnvelope(t, conn)

	req.Equal(contract.TypeInit, envelope.Type)
	req.Len(envelope.Data, 1)
	req.Equal(domain.DefaultRoomID, envelope.Data[0].ID)
}

func TestGate_UpdateReachesOthersNotSender(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	sender := dialWS(t, server.URL)
	receiver := dialWS(t, server.URL)
	readEnvelope(t, sender)   // init
	readEnvelope(t, receiver) // init

	update := contract.Envelope{
		Type: contract.TypeUpdate,
		Data: domain.Collection{
			{ID: domain.DefaultRoomID, Name: "Default Room", Messages: []domain.Message{
				{Username: "alice", Text: "hello", Timestamp: ""},
			}},
			{ID: "room-1", Name: "One", Messages: []domain.Message{}},
			{ID: "room-2", Name: "Two", Messages: []domain.Message{}},
		},
	}
	req.NoError(sender.WriteJSON(update))

	received := readEnvelope(t, receiver)
	req.Equal(contract.TypeUpdate, received.Type)
	req.Len(received.Data, 3)
	req.Equal("hello", received.Data[0].Messages[0].Text)
	req.Equal("alice", received.Data[0].Messages[0].Username)

	// The sender must not hear its own update back
	req.NoError(sender.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	var echo contract.Envelope
	req.Error(sender.ReadJSON(&echo))
}

func TestGate_MalformedFrameKeepsConnectionAlive(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	conn := dialWS(t, server.URL)
	other := dialWS(t, server.URL)
	readEnvelope(t, conn)
	readEnvelope(t, other)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// The connection survives and later updates still flow
	req.NoError(conn.WriteJSON(contract.Envelope{
		Type: contract.TypeUpdate,
		Data: domain.Collection{{ID: domain.DefaultRoomID, Name: "Default Room"}},
	}))

	received := readEnvelope(t, other)
	req.Equal(contract.TypeUpdate, received.Type)
}

func TestGate_RestMutationsBroadcastToSessions(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	conn := dialWS(t, server.URL)
	readEnvelope(t, conn)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/rooms",
		map[string]any{"id": "room-1", "name": "Lounge"})
	req.Equal(http.StatusCreated, resp.StatusCode)

	received := readEnvelope(t, conn)
	req.Equal(contract.TypeUpdate, received.Type)
	req.Len(received.Data, 2)
}
