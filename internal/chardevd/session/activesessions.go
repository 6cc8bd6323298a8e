package session

import (
	"context"
	"sort"
	"sync"

	"github.com/chardev/chardev/internal/common/apperrors"
	"github.com/chardev/chardev/internal/common/uuid"
	"github.com/chardev/chardev/internal/device/store"
	"github.com/rs/zerolog/log"
)

// SessionManager maps transport handles to open store sessions.
type SessionManager interface {
	// Store returns the device store sessions are opened on.
	Store() *store.Store

	// OpenSession opens a new session and registers its handle.
	OpenSession(ctx context.Context) *store.Session

	// GetSession resolves a handle.
	GetSession(id uuid.UUID) (*store.Session, apperrors.Error)

	// ListSessions returns every open session, oldest first.
	ListSessions() []*store.Session

	// CloseSession closes the session and forgets its handle.
	CloseSession(ctx context.Context, id uuid.UUID) apperrors.Error

	// CloseAll closes every open session.
	CloseAll(ctx context.Context)
}

type activeSessions struct {
	mu       sync.RWMutex
	store    *store.Store
	sessions map[uuid.UUID]*store.Session
}

var sessionManager SessionManager

// Init installs a session manager for s. Handlers fail with ErrNotReady
// until it is called.
func Init(s *store.Store) SessionManager {
	sessionManager = NewSessionManager(s)
	return sessionManager
}

// NewSessionManager returns a manager with no open sessions.
func NewSessionManager(s *store.Store) SessionManager {
	return &activeSessions{
		store:    s,
		sessions: make(map[uuid.UUID]*store.Session),
	}
}

// ActiveSessionManager returns the manager installed by Init.
func ActiveSessionManager() SessionManager {
	return sessionManager
}

func (as *activeSessions) Store() *store.Store {
	return as.store
}

func (as *activeSessions) OpenSession(ctx context.Context) *store.Session {
	sess := as.store.Open()

	as.mu.Lock()
	as.sessions[sess.ID()] = sess
	as.mu.Unlock()

	log.Ctx(ctx).Info().Str("session_id", sess.ID().String()).Msg("session opened")
	return sess
}

func (as *activeSessions) GetSession(id uuid.UUID) (*store.Session, apperrors.Error) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	if sess, ok := as.sessions[id]; ok {
		return sess, nil
	}
	return nil, ErrInvalidSession
}

func (as *activeSessions) ListSessions() []*store.Session {
	as.mu.RLock()
	list := make([]*store.Session, 0, len(as.sessions))
	for _, sess := range as.sessions {
		list = append(list, sess)
	}
	as.mu.RUnlock()

	// UUIDv7 handles sort by creation time
	sort.Slice(list, func(i, j int) bool {
		return uuid.CompareUUIDv7(list[i].ID(), list[j].ID()) < 0
	})
	return list
}

func (as *activeSessions) CloseSession(ctx context.Context, id uuid.UUID) apperrors.Error {
	as.mu.Lock()
	sess, ok := as.sessions[id]
	if ok {
		delete(as.sessions, id)
	}
	as.mu.Unlock()
	if !ok {
		return ErrInvalidSession
	}

	if err := as.store.Close(sess); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("session_id", id.String()).Msg("unable to close session")
		return ErrSessionError.Err(err)
	}
	log.Ctx(ctx).Info().Str("session_id", id.String()).Msg("session closed")
	return nil
}

func (as *activeSessions) CloseAll(ctx context.Context) {
	for _, sess := range as.ListSessions() {
		as.CloseSession(ctx, sess.ID())
	}
}
