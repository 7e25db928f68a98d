package chatsession

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"devconnect/backend/internal/models"
)

// Config describes one chat session. Endpoint and Token are fixed for the
// session's life; changing either means creating a new session.
type Config struct {
	// Endpoint is the relay websocket URL (ws:// or wss://).
	Endpoint string
	// Token is the opaque connection-time credential.
	Token string
	// Identity resolves the local participant id used to tell own messages
	// apart from others'. Defaults to a fresh RandomIdentity.
	Identity IdentityResolver
	// Transport overrides the websocket transport; used by tests.
	Transport Transport
}

// ChatSession wires the transport, room controller and message log together
// and enforces the session state machine:
//
//	Disconnected -> Connecting -> Connected(no room) <-> Connected(room)
//
// with any transport failure dropping back to Disconnected. Every public
// call returns immediately; outcomes are observed through State, Room,
// LastError and Snapshot. One session owns one transport connection and at
// most one active room.
type ChatSession struct {
	transport Transport
	localID   string
	log       *MessageLog

	// mu serializes every transition: public calls and transport callbacks
	// alike. The transport dispatches from a single goroutine, so inbound
	// events are handled strictly in arrival order.
	mu      sync.Mutex
	state   State
	rooms   RoomController
	lastErr string

	// discarded counts messages dropped because they arrived for a room
	// that is not (or no longer) active.
	discarded atomic.Uint64

	onMessage func(models.Message)
	onState   func(State)
}

func New(cfg Config) *ChatSession {
	identity := cfg.Identity
	if identity == nil {
		identity = &RandomIdentity{}
	}
	transport := cfg.Transport
	if transport == nil {
		transport = NewConnectionManager(cfg.Endpoint, cfg.Token)
	}

	s := &ChatSession{
		transport: transport,
		localID:   identity.ResolveLocalID(),
		log:       NewMessageLog(),
	}

	transport.On(models.EventConnect, s.handleConnect)
	transport.On(models.EventConnectError, s.handleConnectError)
	transport.On(models.EventError, s.handleRelayError)
	transport.On(models.EventMessage, s.handleMessage)

	return s
}

// OnMessage sets the callback invoked for every message appended to the
// log. Set it before Start; it runs on the transport's event goroutine.
func (s *ChatSession) OnMessage(f func(models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = f
}

// OnStateChange sets the callback invoked on every state transition. Set it
// before Start.
func (s *ChatSession) OnStateChange(f func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = f
}

// Start begins connecting. It is a no-op unless the session is
// Disconnected. The outcome arrives as a state transition; after a failure
// Start may be called again.
func (s *ChatSession) Start() {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.lastErr = ""
	notify := s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	notify()

	if err := s.transport.Connect(); err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		notify = s.setStateLocked(StateDisconnected)
		s.mu.Unlock()
		notify()
	}
}

// Stop releases the transport and discards any in-flight room-switch
// intent. The session may be started again afterwards.
func (s *ChatSession) Stop() {
	s.mu.Lock()
	s.rooms.Reset()
	s.rooms.ClearPending()
	s.log.Clear()
	notify := s.setStateLocked(StateDisconnected)
	s.mu.Unlock()
	notify()

	s.transport.Disconnect()
}

// SwitchRoom makes roomID the active room, leaving the previous one. While
// the connection is not ready it fails with ErrNotConnected but queues the
// request; the latest queued room is replayed once connected.
func (s *ChatSession) SwitchRoom(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		s.rooms.SetPending(roomID)
		return ErrNotConnected
	}

	cleared, err := s.rooms.Switch(s.transport, roomID)
	if cleared {
		s.log.Clear()
	}
	return err
}

// Send emits a chatMessage for the active room. Empty or whitespace-only
// text, and any state without an active room, are silent no-ops: the same
// guard the UI applies, enforced here so programmatic misuse cannot bypass
// it.
func (s *ChatSession) Send(text string) {
	body := strings.TrimSpace(text)
	if body == "" {
		return
	}

	s.mu.Lock()
	active := s.rooms.Active()
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected || active == "" {
		return
	}

	payload := models.ChatPayload{RoomID: active, Message: body}
	if err := s.transport.Emit(models.EventChatMessage, payload); err != nil {
		log.Printf("chatsession: send to room %s: %v", active, err)
	}
}

// State returns the current connection state.
func (s *ChatSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the active room id, or "" when no room is joined.
func (s *ChatSession) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Active()
}

// LastError returns the latest surfaced error message. It is cleared by the
// next successful state transition.
func (s *ChatSession) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LocalID returns the local participant id used to tag own messages.
func (s *ChatSession) LocalID() string {
	return s.localID
}

// Snapshot returns the active room's message history in arrival order.
func (s *ChatSession) Snapshot() []models.Message {
	return s.log.Snapshot()
}

// Discarded returns how many inbound messages were dropped for arriving
// outside the active room. Exposed for diagnosis of room-switch races.
func (s *ChatSession) Discarded() uint64 {
	return s.discarded.Load()
}

// setStateLocked updates the state and returns the notification to run
// after the lock is released, so callbacks can call back into the session.
func (s *ChatSession) setStateLocked(st State) func() {
	s.state = st
	cb := s.onState
	if cb == nil {
		return func() {}
	}
	return func() { cb(st) }
}

func (s *ChatSession) handleConnect(json.RawMessage) {
	s.mu.Lock()
	s.lastErr = ""
	notify := s.setStateLocked(StateConnected)
	if pending := s.rooms.TakePending(); pending != "" {
		cleared, err := s.rooms.Switch(s.transport, pending)
		if err != nil {
			log.Printf("chatsession: joining pending room %s: %v", pending, err)
		}
		if cleared {
			s.log.Clear()
		}
	}
	s.mu.Unlock()
	notify()
}

func (s *ChatSession) handleConnectError(data json.RawMessage) {
	cause := "connection failed"
	var p models.ConnectErrorPayload
	if len(data) > 0 && json.Unmarshal(data, &p) == nil && p.Message != "" {
		cause = p.Message
	}

	s.mu.Lock()
	s.rooms.Reset()
	s.lastErr = cause
	notify := s.setStateLocked(StateDisconnected)
	s.mu.Unlock()
	notify()
}

// handleRelayError surfaces a relay-reported application error. The
// connection stays open; the message is shown until the next successful
// transition clears it.
func (s *ChatSession) handleRelayError(data json.RawMessage) {
	cause := decodeErrorPayload(data)
	if cause == "" {
		return
	}
	s.mu.Lock()
	s.lastErr = cause
	s.mu.Unlock()
}

func (s *ChatSession) handleMessage(data json.RawMessage) {
	sender, roomID, body, sentAt, ok := decodeInboundMessage(data)
	if !ok {
		log.Printf("chatsession: dropping malformed message payload")
		return
	}

	s.mu.Lock()
	active := s.rooms.Active()
	if s.state != StateConnected || active == "" {
		s.discarded.Add(1)
		s.mu.Unlock()
		return
	}
	// The relay scopes delivery to joined rooms, but a message can still
	// race a room switch; room-tagged payloads for another room are
	// dropped, and counted.
	if roomID != "" && roomID != active {
		s.discarded.Add(1)
		s.mu.Unlock()
		log.Printf("chatsession: discarding message for room %s (active %s)", roomID, active)
		return
	}

	entry := models.Message{
		SenderID: sender,
		RoomID:   active,
		Body:     body,
		SentAt:   sentAt,
	}
	s.log.Append(entry)
	cb := s.onMessage
	s.mu.Unlock()

	if cb != nil {
		cb(entry)
	}
}

// decodeInboundMessage accepts both wire forms of the message event: a bare
// JSON string (system notice, attributed to the active room) and the user
// payload object.
func decodeInboundMessage(data json.RawMessage) (sender, roomID, body string, sentAt time.Time, ok bool) {
	var notice string
	if err := json.Unmarshal(data, &notice); err == nil {
		return models.SystemSenderID, "", notice, time.Now(), true
	}

	var p models.UserMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		return "", "", "", time.Time{}, false
	}

	ts, err := time.Parse(time.RFC3339, p.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	return p.UserID, p.RoomID, p.Message, ts, true
}

// decodeErrorPayload accepts both wire forms of the error event: a bare
// string and an object with a message field.
func decodeErrorPayload(data json.RawMessage) string {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.Message
	}
	return ""
}
