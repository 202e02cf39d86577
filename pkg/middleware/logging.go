package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketsearch/pkg/logger"
)

const (
	// CorrelationIDHeader carries the request correlation id in both
	// directions.
	CorrelationIDHeader = "X-Correlation-ID"

	maxCorrelationIDLen = 128
)

// RequestLogging assigns each request a correlation id, echoes it in the
// response and logs one line per request once it completes. Server errors
// log at error level, client errors at warn, probes and scrapes at debug.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(CorrelationIDHeader)
			if correlationID == "" || len(correlationID) > maxCorrelationIDLen {
				correlationID = uuid.NewString()
			}
			ctx := logger.WithCorrelationID(r.Context(), correlationID)
			w.Header().Set(CorrelationIDHeader, correlationID)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			l.Log(ctx, requestLevel(r, sw.status), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", sw.bytes),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("correlation_id", correlationID),
			)
		})
	}
}

func requestLevel(r *http.Request, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case r.URL.Path == "/metrics" || r.URL.Path == "/health/live" || r.URL.Path == "/health/ready":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
