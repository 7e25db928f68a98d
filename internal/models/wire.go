package models

import "encoding/json"

// Relay event names. The exact strings are part of the wire contract and
// must match what browser clients send.
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventError        = "error"
	EventMessage      = "message"
	EventJoinRoom     = "joinRoom"
	EventLeaveRoom    = "leaveRoom"
	EventChatMessage  = "chatMessage"
)

// Envelope frames every websocket message exchanged with the relay.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AuthCredentials carries the opaque connection-time credential.
type AuthCredentials struct {
	Token string `json:"token"`
}

// ConnectPayload is the client handshake, sent as the first frame after the
// websocket is established. The token is validated once, at connect time,
// never per message.
type ConnectPayload struct {
	Auth AuthCredentials `json:"auth"`
}

// ConnectErrorPayload carries a human-readable handshake or transport
// failure cause.
type ConnectErrorPayload struct {
	Message string `json:"message"`
}

// ChatPayload is the outbound chatMessage body.
type ChatPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// UserMessagePayload is the user-message form of the inbound message event.
// System notices travel as a bare JSON string instead. Timestamp is RFC3339.
type UserMessagePayload struct {
	RoomID    string `json:"roomId,omitempty"`
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
