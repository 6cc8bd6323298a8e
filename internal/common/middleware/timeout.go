package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/chardev/chardev/internal/common/httpx"
	"github.com/rs/zerolog/log"
)

// SetTimeout bounds request handling to timeout. The handler writes into a
// buffer that is sent once it returns; a handler still running at the
// deadline gets a 408 and its later writes fail with http.ErrHandlerTimeout.
// Streaming routes must not be wrapped.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{h: make(http.Header)}
			r = r.WithContext(ctx)

			done := make(chan struct{})
			var panicked bool
			go func() {
				defer func() {
					if p := recover(); p != nil {
						log.Ctx(ctx).Error().Msgf("panic in handler: %v", p)
						panicked = true
					}
					close(done)
				}()
				next.ServeHTTP(tw, r)
			}()

			select {
			case <-done:
				if panicked && !tw.started() {
					httpx.ErrApplicationError().Send(w)
					return
				}
				tw.flushTo(w)
			case <-ctx.Done():
				tw.expire()
				httpx.ErrRequestTimeout().Send(w)
				log.Ctx(ctx).Error().Msg("request timed out")
			}
		})
	}
}

type timeoutWriter struct {
	h http.Header

	mu       sync.Mutex
	buf      bytes.Buffer
	code     int
	timedOut bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.code != 0 {
		return
	}
	tw.code = code
}

func (tw *timeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if tw.code == 0 {
		tw.code = http.StatusOK
	}
	return tw.buf.Write(p)
}

func (tw *timeoutWriter) started() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.code != 0
}

func (tw *timeoutWriter) expire() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.timedOut = true
}

// flushTo must only be called after the handler has returned.
func (tw *timeoutWriter) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range tw.h {
		dst[k] = v
	}
	code := tw.code
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	w.Write(tw.buf.Bytes())
}
