package echoserver

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Logger logs every completed request: info below 400, warn for 4xx and
// error for 5xx.
func Logger(logger zerolog.Logger, serviceName string, skipPaths ...string) Middleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			event := logger.Info()
			switch status := wrapped.Status(); {
			case status >= 500:
				event = logger.Error()
			case status >= 400:
				event = logger.Warn()
			}

			event.
				Str("service", serviceName).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Dur("duration", time.Since(start)).
				Int("bytes", wrapped.BytesWritten()).
				Str("user_agent", r.UserAgent())

			if id := RequestIDFromContext(r.Context()); id != "" {
				event.Str("request_id", id)
			}

			event.Msg("request completed")
		})
	}
}
