package chatsession

import "encoding/json"

// EventHandler consumes one decoded relay event. Handlers registered for
// the same event run in registration order; all dispatch happens on a
// single goroutine, so handlers never run concurrently.
type EventHandler func(data json.RawMessage)

// Transport is the relay-facing connection a ChatSession drives. The
// production implementation is ConnectionManager; tests substitute a fake
// that records emitted events and replays inbound ones.
type Transport interface {
	// Connect starts the dial and handshake. It returns immediately; the
	// outcome arrives later as a connect or connect_error event. Calling
	// it while a connection is live or in flight is a no-op.
	Connect() error
	// Disconnect tears the connection down. Subsequent Emit calls fail
	// with ErrNotConnected until Connect succeeds again.
	Disconnect()
	// Emit sends one named event to the relay.
	Emit(event string, payload any) error
	// On registers a handler for the named inbound event.
	On(event string, h EventHandler)
	// Connected reports whether the handshake has completed.
	Connected() bool
}
