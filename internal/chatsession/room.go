package chatsession

import (
	"log"

	"devconnect/backend/internal/models"
)

// RoomController serializes room transitions so that at most one room is
// active per connection. It is owned by a ChatSession and must only be
// touched under the session's lock.
type RoomController struct {
	active  string
	pending string
}

// Switch moves the active room to roomID, emitting leaveRoom for the old
// room (best-effort) and joinRoom for the new one over t. Switching to the
// already-active room is a no-op with no join/leave traffic. The returned
// bool reports whether a transition happened, in which case the owning
// session must clear its message log.
func (r *RoomController) Switch(t Transport, roomID string) (bool, error) {
	if roomID == "" || roomID == r.active {
		return false, nil
	}

	if r.active != "" {
		// Failure to deliver the leave notification does not block the join.
		if err := t.Emit(models.EventLeaveRoom, r.active); err != nil {
			log.Printf("chatsession: leaving room %s: %v", r.active, err)
		}
	}

	if err := t.Emit(models.EventJoinRoom, roomID); err != nil {
		r.pending = roomID
		return false, err
	}

	r.active = roomID
	return true, nil
}

// Active returns the currently joined room, or "" when none.
func (r *RoomController) Active() string {
	return r.active
}

// SetPending records the latest requested room while the connection is not
// ready. Only the most recent request is kept.
func (r *RoomController) SetPending(roomID string) {
	r.pending = roomID
}

// TakePending returns and clears the queued room request, if any.
func (r *RoomController) TakePending() string {
	p := r.pending
	r.pending = ""
	return p
}

// Reset drops the active room without emitting traffic, keeping any pending
// request. Called when the transport drops.
func (r *RoomController) Reset() {
	r.active = ""
}

// ClearPending discards any queued room request. Called on Stop.
func (r *RoomController) ClearPending() {
	r.pending = ""
}
