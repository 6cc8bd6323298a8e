// Package httpx provides HTTP request/response handling utilities shared by the
// chardevd handlers: JSON and octet-stream responses, apperrors translation and
// chunked streaming.
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chardev/chardev/internal/common/apperrors"
	"github.com/rs/zerolog/log"
)

const (
	ContentTypeJSON        = "application/json"
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeNDJSON      = "application/x-ndjson"
)

// GetRequestData parses a JSON request body into data.
// Only POST and PUT carry a body.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("Empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// WriteChunksFunc writes the body of a chunked response.
type WriteChunksFunc func(w http.ResponseWriter) error

// Response describes what a RequestHandler wants sent back. Response holds a
// value to marshal for JSON, or []byte for octet-stream.
type Response struct {
	StatusCode  int
	Location    string
	Response    any
	ContentType string
	Headers     map[string]string
	Chunked     bool
	WriteChunks WriteChunksFunc
}

// RequestHandler handles a request and returns the response to send.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler to http.HandlerFunc, converting returned
// errors into JSON error bodies.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			sendAnyError(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		for k, v := range rsp.Headers {
			w.Header().Set(k, v)
		}
		if rsp.Chunked {
			if rsp.WriteChunks == nil {
				ErrApplicationError("unable to write chunks").Send(w)
				return
			}
			w.Header().Set("Content-Type", rsp.ContentType)
			w.Header().Set("Transfer-Encoding", "chunked")
			w.WriteHeader(rsp.StatusCode)
			if err := rsp.WriteChunks(w); err != nil {
				log.Ctx(r.Context()).Error().Err(err).Msg("Error writing chunk")
			}
			return
		}

		if rsp.ContentType == "" {
			rsp.ContentType = ContentTypeJSON
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		switch rsp.ContentType {
		case ContentTypeJSON:
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		case ContentTypeOctetStream:
			data, ok := rsp.Response.([]byte)
			if !ok && rsp.Response != nil {
				ErrApplicationError("octet-stream response must be bytes").Send(w)
				return
			}
			w.Header().Set("Content-Type", ContentTypeOctetStream)
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(rsp.StatusCode)
			w.Write(data)
		default:
			ErrApplicationError("unsupported response type").Send(w)
		}
	})
}

func sendAnyError(w http.ResponseWriter, err error) {
	if httperror, ok := err.(*Error); ok {
		httperror.Send(w)
	} else if appErr, ok := err.(apperrors.Error); ok {
		SendError(w, appErr)
	} else {
		ErrApplicationError(err.Error()).Send(w)
	}
}
