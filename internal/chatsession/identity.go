package chatsession

import (
	"sync"

	"github.com/google/uuid"
)

// IdentityResolver supplies the local participant id a session tags its own
// messages with. The id is a display/ownership tag only; it carries no
// trust guarantee and is not authentication.
type IdentityResolver interface {
	ResolveLocalID() string
}

// RandomIdentity generates a random uuid the first time it is asked and
// returns the same id afterwards. Two sessions with separate RandomIdentity
// values appear as different senders; callers that want a stable identity
// across sessions should persist the id and use StaticIdentity instead.
type RandomIdentity struct {
	once sync.Once
	id   string
}

func (r *RandomIdentity) ResolveLocalID() string {
	r.once.Do(func() {
		r.id = uuid.New().String()
	})
	return r.id
}

// StaticIdentity resolves to a fixed id. Used by callers that already hold
// a participant id (for example from the token endpoint) and by tests.
type StaticIdentity string

func (s StaticIdentity) ResolveLocalID() string {
	return string(s)
}
