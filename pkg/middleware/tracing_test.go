package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

// tracedRequest serves one request through Tracing and returns the single
// recorded span.
func tracedRequest(t *testing.T, req *http.Request, status int) (tracetest.SpanStub, *httptest.ResponseRecorder) {
	t.Helper()
	exporter := setupTestTracer(t)

	r := chi.NewRouter()
	r.Use(Tracing("test-service"))
	r.Get("/api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	return spans[0], rec
}

func attrMap(span tracetest.SpanStub) map[string]any {
	out := make(map[string]any, len(span.Attributes))
	for _, a := range span.Attributes {
		out[string(a.Key)] = a.Value.AsInterface()
	}
	return out
}

func TestTracing_NamesSpanByRoutePattern(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)

	span, _ := tracedRequest(t, req, http.StatusOK)

	assert.Equal(t, "GET /api/v1/sessions/{id}", span.Name)
	attrs := attrMap(span)
	assert.Equal(t, "/api/v1/sessions/{id}", attrs["http.route"])
	assert.Equal(t, int64(200), attrs["http.status_code"])
	assert.Equal(t, int64(len(`{"data":{}}`)), attrs["http.response_size"])
	assert.Equal(t, codes.Unset, span.Status.Code)
}

func TestTracing_RecordsClientIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set(ClientIDHeader, "buyer-42")

	span, _ := tracedRequest(t, req, http.StatusOK)

	attrs := attrMap(span)
	assert.Equal(t, "203.0.113.9", attrs["http.client_ip"])
	assert.Equal(t, "buyer-42", attrs["marketsearch.client_id"])
}

func TestTracing_StatusHandling(t *testing.T) {
	t.Run("client error stays unset", func(t *testing.T) {
		span, _ := tracedRequest(t, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil), http.StatusNotFound)
		assert.Equal(t, int64(404), attrMap(span)["http.status_code"])
		assert.Equal(t, codes.Unset, span.Status.Code)
	})
	t.Run("server error marks span", func(t *testing.T) {
		span, _ := tracedRequest(t, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil), http.StatusServiceUnavailable)
		assert.Equal(t, codes.Error, span.Status.Code)
	})
}

func TestTracing_ContinuesInboundTrace(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	span, rec := tracedRequest(t, req, http.StatusOK)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent.SpanID().String())
	assert.Contains(t, rec.Header().Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "http", scheme(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https", scheme(req))
}
