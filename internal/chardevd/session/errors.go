package session

import (
	"net/http"
	"syscall"

	"github.com/chardev/chardev/internal/common/apperrors"
)

var (
	// ErrSessionError is the base error for all session-related errors.
	ErrSessionError apperrors.Error = apperrors.New("error in processing session").SetStatusCode(http.StatusInternalServerError)

	// ErrInvalidSession is returned when a handle is malformed or names no
	// open session.
	ErrInvalidSession apperrors.Error = ErrSessionError.New("invalid session").SetStatusCode(http.StatusNotFound).SetErrno(syscall.EBADF)

	// ErrNotReady is returned when the session manager has not been
	// initialized with a store.
	ErrNotReady apperrors.Error = ErrSessionError.New("device not ready").SetStatusCode(http.StatusServiceUnavailable).SetErrno(syscall.ENODEV)
)
