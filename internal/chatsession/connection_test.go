package chatsession_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devconnect/backend/internal/chatsession"
	"devconnect/backend/internal/models"
)

// stubRelay is a minimal in-process relay endpoint: it performs the connect
// handshake and records every frame the client sends afterwards.
type stubRelay struct {
	token  string
	frames chan models.Envelope

	mu    sync.Mutex
	conns []*websocket.Conn
}

var stubUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newStubRelay(t *testing.T, token string) (*stubRelay, string) {
	t.Helper()
	s := &stubRelay{token: token, frames: make(chan models.Envelope, 16)}
	srv := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (s *stubRelay) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := stubUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var env models.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		return
	}
	var payload models.ConnectPayload
	if json.Unmarshal(env.Data, &payload) != nil || payload.Auth.Token != s.token {
		data, _ := json.Marshal(models.ConnectErrorPayload{Message: "invalid token"})
		conn.WriteJSON(models.Envelope{Event: models.EventConnectError, Data: data})
		conn.Close()
		return
	}
	conn.WriteJSON(models.Envelope{Event: models.EventConnect})

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		var in models.Envelope
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		s.frames <- in
	}
}

// push writes an event to the most recently accepted connection.
func (s *stubRelay) push(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns, "no client connected")
	conn := s.conns[len(s.conns)-1]
	require.NoError(t, conn.WriteJSON(models.Envelope{Event: event, Data: raw}))
}

func waitFrame(t *testing.T, frames chan models.Envelope) models.Envelope {
	t.Helper()
	select {
	case env := <-frames:
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return models.Envelope{}
	}
}

func waitSignal(t *testing.T, ch chan json.RawMessage, what string) json.RawMessage {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestConnectionManagerHandshakeAndTraffic(t *testing.T) {
	relay, endpoint := newStubRelay(t, "good-token")
	m := chatsession.NewConnectionManager(endpoint, "good-token")
	t.Cleanup(m.Disconnect)

	connected := make(chan json.RawMessage, 1)
	m.On(models.EventConnect, func(d json.RawMessage) { connected <- d })
	msgs := make(chan json.RawMessage, 1)
	m.On(models.EventMessage, func(d json.RawMessage) { msgs <- d })

	require.NoError(t, m.Connect())
	waitSignal(t, connected, "connect event")
	assert.True(t, m.Connected())

	// Outbound.
	require.NoError(t, m.Emit(models.EventJoinRoom, "room1"))
	frame := waitFrame(t, relay.frames)
	assert.Equal(t, models.EventJoinRoom, frame.Event)
	var room string
	require.NoError(t, json.Unmarshal(frame.Data, &room))
	assert.Equal(t, "room1", room)

	// Inbound.
	relay.push(t, models.EventMessage, models.UserMessagePayload{
		RoomID: "room1", UserID: "alice", Message: "hi", Timestamp: "2026-08-28T10:00:00Z",
	})
	raw := waitSignal(t, msgs, "message event")
	var p models.UserMessagePayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "hi", p.Message)
}

func TestConnectionManagerRejectedHandshake(t *testing.T) {
	_, endpoint := newStubRelay(t, "good-token")
	m := chatsession.NewConnectionManager(endpoint, "wrong-token")

	failed := make(chan json.RawMessage, 1)
	m.On(models.EventConnectError, func(d json.RawMessage) { failed <- d })

	require.NoError(t, m.Connect())
	raw := waitSignal(t, failed, "connect_error event")

	var p models.ConnectErrorPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "invalid token", p.Message)
	assert.False(t, m.Connected())
	assert.ErrorIs(t, m.Emit(models.EventJoinRoom, "room1"), chatsession.ErrNotConnected)
}

func TestConnectionManagerDialFailure(t *testing.T) {
	// Nothing listens here.
	m := chatsession.NewConnectionManager("ws://127.0.0.1:1/ws", "token")

	failed := make(chan json.RawMessage, 1)
	m.On(models.EventConnectError, func(d json.RawMessage) { failed <- d })

	require.NoError(t, m.Connect())
	raw := waitSignal(t, failed, "connect_error event")

	var p models.ConnectErrorPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Contains(t, p.Message, "dial")
	assert.False(t, m.Connected())
}

func TestConnectionManagerConnectIsIdempotent(t *testing.T) {
	relay, endpoint := newStubRelay(t, "good-token")
	m := chatsession.NewConnectionManager(endpoint, "good-token")
	t.Cleanup(m.Disconnect)

	connected := make(chan json.RawMessage, 4)
	m.On(models.EventConnect, func(d json.RawMessage) { connected <- d })

	require.NoError(t, m.Connect())
	waitSignal(t, connected, "connect event")
	require.NoError(t, m.Connect())
	require.NoError(t, m.Connect())

	// Still exactly one live connection: one joinRoom arrives, once.
	require.NoError(t, m.Emit(models.EventJoinRoom, "room1"))
	waitFrame(t, relay.frames)
	select {
	case env := <-relay.frames:
		t.Fatalf("unexpected extra frame %q", env.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectionManagerEmitBeforeConnect(t *testing.T) {
	m := chatsession.NewConnectionManager("ws://127.0.0.1:1/ws", "token")
	assert.ErrorIs(t, m.Emit(models.EventChatMessage, models.ChatPayload{}), chatsession.ErrNotConnected)
}

func TestConnectionManagerDisconnectThenReconnect(t *testing.T) {
	relay, endpoint := newStubRelay(t, "good-token")
	m := chatsession.NewConnectionManager(endpoint, "good-token")
	t.Cleanup(m.Disconnect)

	connected := make(chan json.RawMessage, 4)
	m.On(models.EventConnect, func(d json.RawMessage) { connected <- d })

	require.NoError(t, m.Connect())
	waitSignal(t, connected, "first connect")

	m.Disconnect()
	assert.False(t, m.Connected())
	assert.ErrorIs(t, m.Emit(models.EventJoinRoom, "room1"), chatsession.ErrNotConnected)

	require.NoError(t, m.Connect())
	waitSignal(t, connected, "second connect")
	require.NoError(t, m.Emit(models.EventJoinRoom, "room2"))
	frame := waitFrame(t, relay.frames)
	assert.Equal(t, models.EventJoinRoom, frame.Event)
}
