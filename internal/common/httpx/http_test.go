package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"github.com/chardev/chardev/internal/common/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler RequestHandler) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	WrapHttpRsp(handler).ServeHTTP(rr, req)
	return rr
}

func TestWrapHttpRspJSON(t *testing.T) {
	rr := serve(t, func(r *http.Request) (*Response, error) {
		return &Response{
			StatusCode: http.StatusCreated,
			Location:   "/sessions/abc",
			Response:   map[string]int{"position": 0},
		}, nil
	})
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, ContentTypeJSON, rr.Header().Get("Content-Type"))
	assert.Equal(t, "/sessions/abc", rr.Header().Get("Location"))
	assert.JSONEq(t, `{"position":0}`, rr.Body.String())
}

func TestWrapHttpRspOctetStream(t *testing.T) {
	rr := serve(t, func(r *http.Request) (*Response, error) {
		return &Response{
			StatusCode:  http.StatusOK,
			ContentType: ContentTypeOctetStream,
			Headers:     map[string]string{"X-Count": "5"},
			Response:    []byte("hello"),
		}, nil
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ContentTypeOctetStream, rr.Header().Get("Content-Type"))
	assert.Equal(t, "5", rr.Header().Get("Content-Length"))
	assert.Equal(t, "5", rr.Header().Get("X-Count"))
	assert.Equal(t, "hello", rr.Body.String())
}

func TestWrapHttpRspAppError(t *testing.T) {
	errNoSpace := apperrors.New("no space left on device").
		SetStatusCode(http.StatusInsufficientStorage).
		SetErrno(syscall.ENOMEM)

	rr := serve(t, func(r *http.Request) (*Response, error) {
		return nil, errNoSpace
	})
	assert.Equal(t, http.StatusInsufficientStorage, rr.Code)

	var body ErrorRsp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, Failure, body.Result)
	assert.Equal(t, "no space left on device", body.Error)
	assert.Equal(t, int(syscall.ENOMEM), body.Errno)
}

func TestWrapHttpRspErrors(t *testing.T) {
	rr := serve(t, func(r *http.Request) (*Response, error) {
		return nil, ErrInvalidRequest("count must be a number")
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "count must be a number")

	rr = serve(t, func(r *http.Request) (*Response, error) {
		return nil, nil
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = serve(t, func(r *http.Request) (*Response, error) {
		return &Response{StatusCode: http.StatusOK, ContentType: "text/html"}, nil
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestWrapHttpRspChunked(t *testing.T) {
	rr := serve(t, func(r *http.Request) (*Response, error) {
		return &Response{
			StatusCode:  http.StatusOK,
			ContentType: ContentTypeNDJSON,
			Chunked:     true,
			WriteChunks: func(w http.ResponseWriter) error {
				_, err := w.Write([]byte("{\"op\":\"open\"}\n"))
				return err
			},
		}, nil
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ContentTypeNDJSON, rr.Header().Get("Content-Type"))
	assert.Equal(t, "{\"op\":\"open\"}\n", rr.Body.String())
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	assert.Same(t, rw, NewResponseWriter(rw))
	assert.False(t, rw.Written())
	assert.Equal(t, http.StatusOK, rw.Status())

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusTeapot)
	n, err := rw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, rw.Written())
	assert.Equal(t, http.StatusAccepted, rw.Status())
	assert.Equal(t, 3, rw.BytesWritten())
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
