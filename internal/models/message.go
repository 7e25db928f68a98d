package models

import "time"

// SystemSenderID is the sentinel sender for messages generated by the relay
// itself (join/leave notices and similar) rather than by a participant.
const SystemSenderID = "system"

// Message is a single chat entry as recorded in a session's log.
// Messages are immutable once recorded; per-room ordering is arrival order,
// not SentAt order.
type Message struct {
	// SenderID is the anonymous participant id of the author, or
	// SystemSenderID for relay-generated notices.
	SenderID string `json:"sender_id"`
	// RoomID is the room the message was received or sent in.
	RoomID string `json:"room_id"`
	// Body is the message text.
	Body string `json:"body"`
	// SentAt is the timestamp the relay attached to the message.
	SentAt time.Time `json:"sent_at"`
}

// IsSystem reports whether the message is a relay-generated notice.
func (m Message) IsSystem() bool {
	return m.SenderID == SystemSenderID
}
