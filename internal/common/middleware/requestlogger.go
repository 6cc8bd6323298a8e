package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/chardev/chardev/internal/common/httpx"
	"github.com/chardev/chardev/internal/common/logtrace"
	"github.com/chardev/chardev/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Chardev-Request-ID"

// RequestLogger assigns a request id, puts a request-scoped zerolog logger in
// the context and logs the request and its completion.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := newRequestId()
		ctx := logtrace.WithRequestId(r.Context(), requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		rw := httpx.NewResponseWriter(w)
		rw.Header().Set(RequestIDHeader, requestID)

		log.Ctx(ctx).Info().Fields(map[string]any{
			"requestMethod": r.Method,
			"requestPath":   r.URL.Path,
			"remoteIP":      r.RemoteAddr,
			"proto":         r.Proto,
		}).Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Int("status", rw.Status()).
				Int("bytes", rw.BytesWritten()).
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

func newRequestId() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
