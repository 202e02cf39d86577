package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/marketsearch/pkg/logger"
)

// logThroughRequestLogger serves req through RequestLogger with a handler
// that logs once via the context logger, returning the decoded line.
func logThroughRequestLogger(t *testing.T, req *http.Request) (map[string]any, string) {
	t.Helper()
	var buf bytes.Buffer
	base := logger.New(logger.Options{Service: "test-svc", Writer: &buf})

	var clientID string
	h := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID = logger.ClientID(r.Context())
		logger.FromContext(r.Context()).InfoContext(r.Context(), "handled")
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out, clientID
}

func TestRequestLogger_CarriesCorrelationID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-test-123")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil).WithContext(ctx)

	out, _ := logThroughRequestLogger(t, req)

	assert.Equal(t, "corr-test-123", out["correlation_id"])
	assert.Equal(t, "test-svc", out["service"])
}

func TestRequestLogger_ClientID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"present", "buyer-1", "buyer-1"},
		{"trimmed", "  buyer-2 ", "buyer-2"},
		{"absent", "", ""},
		{"blank", "   ", ""},
		{"overlong", strings.Repeat("c", maxClientIDLen+1), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
			if tt.header != "" {
				req.Header.Set(ClientIDHeader, tt.header)
			}

			out, clientID := logThroughRequestLogger(t, req)

			assert.Equal(t, tt.want, clientID)
			if tt.want == "" {
				assert.NotContains(t, out, "client_id")
			} else {
				assert.Equal(t, tt.want, out["client_id"])
			}
		})
	}
}

func TestRequestLogger_IncludesTraceFields(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil).WithContext(ctx)

	out, _ := logThroughRequestLogger(t, req)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}
