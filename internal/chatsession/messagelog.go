package chatsession

import (
	"sync"

	"devconnect/backend/internal/models"
)

// MessageLog is the ordered message history for the active room. It is
// append-only while a room is open and fully cleared on every room switch,
// since the relay does not replay history. Mutation happens only from the
// owning session; readers take snapshots.
type MessageLog struct {
	mu      sync.RWMutex
	entries []models.Message
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Append(msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
}

func (l *MessageLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Snapshot returns a copy of the log in arrival order. The copy is stable:
// later appends or clears do not affect it.
func (l *MessageLog) Snapshot() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
