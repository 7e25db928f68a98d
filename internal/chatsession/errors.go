package chatsession

import "errors"

// ErrNotConnected is returned when an operation that needs a live
// connection is attempted outside the connected state. It is a local,
// synchronous condition; callers are expected to disable the affected
// controls based on observed state rather than relying on this error.
var ErrNotConnected = errors.New("chatsession: not connected")
