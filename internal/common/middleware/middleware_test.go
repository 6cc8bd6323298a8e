package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chardev/chardev/internal/common/logtrace"
	"github.com/stretchr/testify/assert"
)

func TestRequestLogger(t *testing.T) {
	var seen string
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logtrace.RequestIdFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
}

func TestPanicHandler(t *testing.T) {
	h := PanicHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "unable to process request")
}

func TestSetTimeout(t *testing.T) {
	t.Run("slow handler", func(t *testing.T) {
		release := make(chan struct{})
		finished := make(chan error, 1)
		slow := SetTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
			w.Header().Set("X-Late", "yes")
			_, err := w.Write([]byte("late"))
			finished <- err
		}))
		rr := httptest.NewRecorder()
		slow.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusRequestTimeout, rr.Code)
		close(release)

		select {
		case err := <-finished:
			assert.ErrorIs(t, err, http.ErrHandlerTimeout)
		case <-time.After(time.Second):
			t.Fatal("handler did not finish")
		}
		assert.NotContains(t, rr.Body.String(), "late")
		assert.Empty(t, rr.Header().Get("X-Late"))
	})

	t.Run("fast handler", func(t *testing.T) {
		fast := SetTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/sessions/1")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("created"))
		}))
		rr := httptest.NewRecorder()
		fast.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "/sessions/1", rr.Header().Get("Location"))
		assert.Equal(t, "created", rr.Body.String())
	})

	t.Run("implicit status", func(t *testing.T) {
		h := SetTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("panic", func(t *testing.T) {
		h := SetTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
