// Package apperrors provides chained application errors that carry an HTTP status
// code and a POSIX errno. Transport adapters pick whichever convention their host
// expects; errors.Is works across the whole chain.
package apperrors

import "syscall"

// Error defines the interface for application errors. All methods that return
// Error return a new value and leave the receiver unchanged.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // creates a new error using current as template
	Msg(msg string) Error                  // creates a new error with message and wraps original
	MsgErr(msg string, err ...error) Error // creates error with message and wraps extra errors
	Err(err ...error) Error                // attaches additional errors to current error
	SetExpandError(bool) Error             // controls whether ErrorAll expands wrapped errors
	SetStatusCode(int) Error               // sets HTTP status code for the error
	StatusCode() int                       // returns the current status code
	SetErrno(syscall.Errno) Error          // sets the errno surfaced to file-style callers
	Errno() syscall.Errno                  // returns the errno, 0 if unset
	ErrorAll() string                      // returns full message including wrapped errors
}
