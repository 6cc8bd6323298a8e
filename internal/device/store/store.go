// Package store implements the bounded buffer store: a fixed-capacity byte
// array shared by any number of sessions, each with its own cursor. Sessions
// seek, read and write the array the way a process uses a character device;
// reads and writes are clamped to the end of storage and never grow it.
//
// All operations run under a single store-wide lock, so a transfer is atomic
// with respect to every other transfer and seek.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/chardev/chardev/internal/common/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCapacity is the storage size used when none is configured.
const DefaultCapacity = 256

// Store owns the storage array. The zero value is not usable; call New.
type Store struct {
	mu       sync.Mutex
	buf      []byte
	open     map[uuid.UUID]*Session
	copier   Copier
	observer Observer
	logger   zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCopier replaces the boundary copier.
func WithCopier(c Copier) Option {
	return func(s *Store) {
		if c != nil {
			s.copier = c
		}
	}
}

// WithObserver registers an observer for completed operations.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// WithLogger sets the logger used for operation traces.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New allocates a zeroed store of the given capacity. The capacity is fixed
// for the lifetime of the store.
func New(capacity int, opts ...Option) (*Store, error) {
	if capacity <= 0 {
		return nil, ErrInvalidArgument.Msg(fmt.Sprintf("capacity must be positive, got %d", capacity))
	}
	s := &Store{
		buf:    make([]byte, capacity),
		open:   make(map[uuid.UUID]*Session),
		copier: boundedCopier{},
		logger: log.With().Str("component", "store").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Capacity returns the storage size in bytes.
func (s *Store) Capacity() int {
	return len(s.buf)
}

// OpenSessions returns the number of sessions that have not been closed.
func (s *Store) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Snapshot returns a copy of the storage contents.
func (s *Store) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// Open creates a session with its cursor at 0. It never fails and does not
// touch storage.
func (s *Store) Open() *Session {
	sess := &Session{
		id:    uuid.New(),
		store: s,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[sess.id] = sess
	s.logger.Debug().Str("session_id", sess.id.String()).Msg("device file opened")
	s.notify(Event{Op: OpOpen, SessionID: sess.id})
	return sess
}

// Close ends the session. Closing an already closed session is a no-op.
func (s *Store) Close(sess *Session) error {
	if err := s.owns(sess); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.closed {
		return nil
	}
	sess.closed = true
	delete(s.open, sess.id)
	s.logger.Debug().Str("session_id", sess.id.String()).Msg("device file closed")
	s.notify(Event{Op: OpClose, SessionID: sess.id, Offset: sess.cursor, Position: sess.cursor})
	return nil
}

// owns rejects nil sessions and sessions opened on a different store.
func (s *Store) owns(sess *Session) error {
	if sess == nil {
		return ErrInvalidArgument.Msg("nil session")
	}
	if sess.store != s {
		return ErrInvalidArgument.Msg("session belongs to another store")
	}
	return nil
}

// checkOpen must be called with s.mu held.
func (s *Store) checkOpen(sess *Session) error {
	if err := s.owns(sess); err != nil {
		return err
	}
	if sess.closed {
		return ErrSessionClosed
	}
	return nil
}

// notify must be called with s.mu held.
func (s *Store) notify(e Event) {
	if s.observer == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.observer.Observe(e)
}
