package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"syscall"

	"github.com/chardev/chardev/internal/common/apperrors"
)

// Error represents an HTTP error response with status code and description.
// Errno is set when the failure maps to a file-style error code.
type Error struct {
	Description string        `json:"description"`
	StatusCode  int           `json:"http_status_code"`
	Errno       syscall.Errno `json:"errno,omitempty"`
}

// ErrorRsp is the JSON body of every error response.
type ErrorRsp struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
	Errno  int    `json:"errno,omitempty"`
}

// Failure represents the error result code in error responses.
const Failure int = 0

// Send writes the error response. A nil writer is ignored.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rsp := &ErrorRsp{
		Result: Failure,
		Error:  e.Description,
		Errno:  int(e.Errno),
	}
	rspJson, err := json.Marshal(rsp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to parse error"))
		return
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

func (e *Error) Error() string {
	return e.Description
}

// SendError sends an application error as an HTTP error response, defaulting
// to 500 when the error carries no status code.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
		Errno:       err.Errno(),
	}
	httperror.Send(w)
}

func ErrReqMethodNotSupported() *Error {
	return &Error{
		Description: "request method not supported",
		StatusCode:  http.StatusMethodNotAllowed,
	}
}

func ErrUnableToParseReqData() *Error {
	return &Error{
		Description: "unable to parse request data",
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrUnableToReadRequest() *Error {
	return &Error{
		Description: "unable to read request data",
		StatusCode:  http.StatusBadRequest,
	}
}

// ErrApplicationError returns a 500 error, with a default message if none is given.
func ErrApplicationError(err ...string) *Error {
	s := "unable to process request"
	if len(err) > 0 {
		s = err[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusInternalServerError,
	}
}

// ErrInvalidRequest returns a 400 error, with a default message if none is given.
func ErrInvalidRequest(str ...string) *Error {
	s := "invalid request data or empty request values"
	if len(str) > 0 {
		s = str[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrRequestTimeout() *Error {
	return &Error{
		Description: "request timed out",
		StatusCode:  http.StatusRequestTimeout,
	}
}

func ErrRequestTooLarge(limit int64) *Error {
	return &Error{
		Description: fmt.Sprintf("request body too large (limit: %d bytes)", limit),
		StatusCode:  http.StatusRequestEntityTooLarge,
	}
}
