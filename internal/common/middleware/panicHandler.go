// Package middleware provides HTTP middleware for request logging, timeouts and
// panic recovery, logging through zerolog with a per-request id.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/chardev/chardev/internal/common/httpx"
	"github.com/rs/zerolog/log"
)

// PanicHandler recovers from panics in downstream handlers, logs the stack and
// answers 500 if nothing has been written yet.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := httpx.NewResponseWriter(w)
		defer func() {
			if err := recover(); err != nil {
				log.Ctx(r.Context()).Error().
					Str("panic", fmt.Sprintf("%v", err)).
					Str("stack_trace", string(debug.Stack())).
					Msg("panic occurred")

				if !rw.Written() {
					httpx.ErrApplicationError("unable to process request").Send(rw)
				}
			}
		}()
		next.ServeHTTP(rw, r)
	})
}
