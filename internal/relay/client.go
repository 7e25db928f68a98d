package relay

import "devconnect/backend/internal/models"

// Client is the interface for one connected chat participant. It abstracts
// the underlying transport so the hub can manage client types uniformly and
// tests can substitute doubles.
type Client interface {
	// GetUserID returns the anonymous participant id established during the
	// connect handshake.
	GetUserID() string
	// GetRoomID returns the room the client is currently joined to, or ""
	// when none. Only the hub goroutine reads or writes the room.
	GetRoomID() string
	// SetRoomID assigns the client to a room. Called by the hub on
	// joinRoom/leaveRoom.
	SetRoomID(string)

	// GetSendChannel returns the channel the hub writes outbound frames to.
	GetSendChannel() chan<- models.Envelope

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's outbound channel, stopping its write
	// pump. Safe to call more than once.
	Close()
}
