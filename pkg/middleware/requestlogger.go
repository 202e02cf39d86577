package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/marketsearch/pkg/logger"
)

const (
	// ClientIDHeader carries the opaque identifier of the browsing client.
	ClientIDHeader = "X-Client-ID"

	maxClientIDLen = 128
)

// RequestLogger stores a request-scoped logger carrying the correlation and
// client ids in the request context, where handlers fetch it with
// logger.FromContext. Mount it after RequestLogging. Client ids that are
// blank or longer than 128 bytes are ignored.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := strings.TrimSpace(r.Header.Get(ClientIDHeader)); id != "" && len(id) <= maxClientIDLen {
				ctx = logger.WithClientID(ctx, id)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
