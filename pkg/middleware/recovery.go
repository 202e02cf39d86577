package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/marketsearch/pkg/httputil"
)

var httpPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "http_handler_panics_total",
	Help: "Handler panics recovered by the HTTP server",
})

// Recovery turns a handler panic into a 500 INTERNAL_ERROR response. When
// the response has already started, as on an event stream, the connection is
// left to the handler's deferred cleanup and nothing more is written.
// http.ErrAbortHandler is re-raised so net/http can abort the response.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				httpPanicsTotal.Inc()
				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				if sw.wroteHeader {
					return
				}
				httputil.WriteJSON(sw, http.StatusInternalServerError, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      "INTERNAL_ERROR",
						Message:   "an internal error occurred",
						RequestID: w.Header().Get(CorrelationIDHeader),
					},
				})
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
