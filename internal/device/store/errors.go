package store

import (
	"net/http"
	"syscall"

	"github.com/chardev/chardev/internal/common/apperrors"
)

var (
	// ErrDevice is the base error for everything the store reports.
	ErrDevice apperrors.Error = apperrors.New("device error").SetStatusCode(http.StatusInternalServerError)

	// ErrInvalidArgument is returned for seek targets outside [0, capacity],
	// unknown whence values and negative counts. The cursor is unchanged.
	ErrInvalidArgument apperrors.Error = ErrDevice.New("invalid argument").SetStatusCode(http.StatusBadRequest).SetErrno(syscall.EINVAL)

	// ErrTransferFault is returned when bytes cannot be copied across the
	// caller boundary. Nothing is transferred and the cursor is unchanged.
	// ErrorAll includes the cause.
	ErrTransferFault apperrors.Error = ErrDevice.New("bad address").SetStatusCode(http.StatusBadRequest).SetErrno(syscall.EFAULT).SetExpandError(true)

	// ErrOutOfSpace is returned when a write would transfer zero bytes after
	// clamping to the space left before the end of storage.
	ErrOutOfSpace apperrors.Error = ErrDevice.New("no space left on device").SetStatusCode(http.StatusInsufficientStorage).SetErrno(syscall.ENOMEM)

	// ErrSessionClosed is returned for operations on a session after Close.
	ErrSessionClosed apperrors.Error = ErrDevice.New("session is closed").SetStatusCode(http.StatusBadRequest).SetErrno(syscall.EBADF)
)
