package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"subvault/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags every request with an ID, stores it in the context
// for logger.FromContext and logs the outcome.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = logger.GenerateRequestID()
			}
			w.Header().Set(requestIDHeader, id)

			log := base.With("request_id", id)
			ctx := logger.WithRequestID(r.Context(), id)

			start := time.Now()
			ww := newStatusRecorder(w)
			next.ServeHTTP(ww, r.WithContext(ctx))

			log.InfoContext(ctx, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
