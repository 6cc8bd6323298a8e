package apperrors

import (
	"errors"
	"strings"
	"syscall"
)

type appError struct {
	msg           string
	base          error   // errors.Is/As walks through base
	wrappedErrors []error // attached with Err/MsgErr
	statuscode    int
	errno         syscall.Errno
	expandError   bool
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by every wrapped error when expansion
// is enabled. Otherwise it is the same as Error.
func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, err := range e.wrappedErrors {
		if err == error(e.base) {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

// Msg creates a new error with a new message that wraps e.
// Status code, errno and expansion are inherited.
func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: append([]error{e}, e.wrappedErrors...),
		statuscode:    e.statuscode,
		errno:         e.errno,
		expandError:   e.expandError,
	}
}

// New creates a fresh error using e as a template.
func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statuscode: e.statuscode,
		errno:      e.errno,
	}
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	all := append([]error{e}, errs...)
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: all,
		statuscode:    e.statuscode,
		errno:         e.errno,
		expandError:   e.expandError,
	}
}

// Err keeps the message of e and attaches errs.
func (e *appError) Err(errs ...error) Error {
	all := append([]error{e}, errs...)
	return &appError{
		msg:           e.msg,
		base:          e,
		wrappedErrors: all,
		statuscode:    e.statuscode,
		errno:         e.errno,
		expandError:   e.expandError,
	}
}

func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func (e *appError) SetErrno(errno syscall.Errno) Error {
	cp := *e
	cp.errno = errno
	return &cp
}

func (e *appError) Errno() syscall.Errno {
	return e.errno
}

// New creates a root-level error with the given message.
func New(msg string) Error {
	return &appError{
		msg: msg,
	}
}

// Is matches target against the base chain and every wrapped error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if err == error(e) {
			continue
		}
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrnoOf returns the errno carried by the first apperrors.Error in err's
// chain, or else by a syscall.Errno in it. It is 0 when neither is present.
func ErrnoOf(err error) syscall.Errno {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.Errno()
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
