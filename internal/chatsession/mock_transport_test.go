package chatsession_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"devconnect/backend/internal/chatsession"
	"devconnect/backend/internal/models"
)

// fakeTransport is a test double for chatsession.Transport. It records
// every emitted event and lets tests replay inbound relay events the way
// the read pump would: synchronously, one at a time.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	connects  int
	emitted   []emittedEvent
	handlers  map[string][]chatsession.EventHandler

	connectErr error
	emitErr    error
}

type emittedEvent struct {
	event   string
	payload any
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string][]chatsession.EventHandler),
	}
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return chatsession.ErrNotConnected
	}
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emitted = append(f.emitted, emittedEvent{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) On(event string, h chatsession.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// fire dispatches an inbound event to the registered handlers, in
// registration order, as the read pump would.
func (f *fakeTransport) fire(t *testing.T, event string, data any) {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		raw = b
	}

	f.mu.Lock()
	hs := append([]chatsession.EventHandler(nil), f.handlers[event]...)
	f.mu.Unlock()

	for _, h := range hs {
		h(raw)
	}
}

// accept completes the handshake: the transport goes connected and the
// connect event is delivered.
func (f *fakeTransport) accept(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.fire(t, models.EventConnect, nil)
}

// drop simulates a transport failure surfaced as connect_error.
func (f *fakeTransport) drop(t *testing.T, cause string) {
	t.Helper()
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.fire(t, models.EventConnectError, models.ConnectErrorPayload{Message: cause})
}

// events returns the emitted events with the given name.
func (f *fakeTransport) events(name string) []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emittedEvent
	for _, e := range f.emitted {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

// sequence returns the names of every emitted event, in order.
func (f *fakeTransport) sequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.emitted))
	for i, e := range f.emitted {
		out[i] = e.event
	}
	return out
}
