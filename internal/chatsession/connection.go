package chatsession

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"devconnect/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

// ConnectionManager owns exactly one websocket connection to the relay and
// fans received events out to registered handlers. It does not retry on its
// own; after a failure Connect may be called again safely.
type ConnectionManager struct {
	endpoint string
	token    string

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	handlers map[string][]EventHandler
	// gen invalidates in-flight dials and read pumps after Disconnect or a
	// failure, so a stale connection can never dispatch events.
	gen int

	// writeMu serializes frame writes; reads have their own goroutine.
	writeMu sync.Mutex
}

func NewConnectionManager(endpoint, token string) *ConnectionManager {
	return &ConnectionManager{
		endpoint: endpoint,
		token:    token,
		handlers: make(map[string][]EventHandler),
	}
}

func (m *ConnectionManager) On(event string, h EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], h)
}

func (m *ConnectionManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

func (m *ConnectionManager) Connect() error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	gen := m.gen
	m.mu.Unlock()

	go m.dial(gen)
	return nil
}

func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.gen++
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, msg, deadline)
		conn.Close()
	}
}

// Emit sends one event to the relay. It fails with ErrNotConnected unless
// the handshake has completed.
func (m *ConnectionManager) Emit(event string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	return m.writeEnvelope(conn, event, payload)
}

func (m *ConnectionManager) writeEnvelope(conn *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	env := models.Envelope{Event: event, Data: data}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

func (m *ConnectionManager) dial(gen int) {
	conn, _, err := websocket.DefaultDialer.Dial(m.endpoint, nil)
	if err != nil {
		m.fail(gen, fmt.Sprintf("dial %s: %v", m.endpoint, err))
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()

	hello := models.ConnectPayload{Auth: models.AuthCredentials{Token: m.token}}
	if err := m.writeEnvelope(conn, models.EventConnect, hello); err != nil {
		conn.Close()
		m.fail(gen, fmt.Sprintf("handshake: %v", err))
		return
	}

	m.readPump(conn, gen)
}

// fail moves the manager to Disconnected and surfaces the cause as a
// synthetic connect_error event, so callers observe one uniform failure
// path for dial errors, handshake rejections and transport drops.
func (m *ConnectionManager) fail(gen int, cause string) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	data, err := json.Marshal(models.ConnectErrorPayload{Message: cause})
	if err != nil {
		log.Printf("chatsession: encoding connect_error: %v", err)
		data = nil
	}
	m.dispatch(models.EventConnectError, data)
}

func (m *ConnectionManager) readPump(conn *websocket.Conn, gen int) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			m.fail(gen, fmt.Sprintf("connection lost: %v", err))
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("chatsession: dropping malformed frame: %v", err)
			continue
		}

		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			conn.Close()
			return
		}
		switch env.Event {
		case models.EventConnect:
			m.state = StateConnected
		case models.EventConnectError:
			// Relay rejected the handshake; the connection is done.
			m.gen++
			m.conn = nil
			m.state = StateDisconnected
		}
		m.mu.Unlock()

		m.dispatch(env.Event, env.Data)

		if env.Event == models.EventConnectError {
			conn.Close()
			return
		}
	}
}

// dispatch invokes handlers registered for event, in registration order,
// on the read pump goroutine. Arrival order is therefore dispatch order.
func (m *ConnectionManager) dispatch(event string, data json.RawMessage) {
	m.mu.Lock()
	hs := append([]EventHandler(nil), m.handlers[event]...)
	m.mu.Unlock()

	for _, h := range hs {
		h(data)
	}
}
