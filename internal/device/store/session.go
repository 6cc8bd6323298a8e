package store

import (
	"time"

	"github.com/chardev/chardev/internal/common/uuid"
)

// Session is one open handle on a store. Its cursor ranges over
// [0, capacity]; a cursor equal to capacity is end of storage.
type Session struct {
	id     uuid.UUID
	store  *Store
	cursor int64
	closed bool
}

// ID returns the session identifier.
func (sess *Session) ID() uuid.UUID {
	return sess.id
}

// OpenedAt returns when the session was opened, to the millisecond. It is
// read from the session's UUIDv7.
func (sess *Session) OpenedAt() time.Time {
	return uuid.GetTimestampFromUUID(sess.id)
}

// Position returns the current cursor.
func (sess *Session) Position() int64 {
	sess.store.mu.Lock()
	defer sess.store.mu.Unlock()
	return sess.cursor
}

// Closed reports whether Close has been called.
func (sess *Session) Closed() bool {
	sess.store.mu.Lock()
	defer sess.store.mu.Unlock()
	return sess.closed
}
