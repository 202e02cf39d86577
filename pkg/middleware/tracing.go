package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/marketsearch/pkg/tracing"
)

// Tracing starts a server span per request, continuing any inbound W3C
// trace and echoing the trace context on the response. Once chi has routed
// the request the span is renamed to the route pattern.
func Tracing(component string) func(http.Handler) http.Handler {
	tracer := tracing.Tracer(component)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			prop := otel.GetTextMapPropagator()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			finishSpan(span, r, sw)
		})
	}
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	attrs = append(attrs,
		semconv.HTTPMethod(r.Method),
		semconv.HTTPTarget(r.URL.RequestURI()),
		semconv.HTTPScheme(scheme(r)),
		attribute.String("http.client_ip", clientIP(r)),
	)
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.UserAgentOriginal(ua))
	}
	if id := r.Header.Get(ClientIDHeader); id != "" {
		attrs = append(attrs, attribute.String("marketsearch.client_id", id))
	}
	return attrs
}

// finishSpan records the outcome. Only 5xx marks the span as failed.
func finishSpan(span trace.Span, r *http.Request, sw *statusWriter) {
	if pattern := routePattern(r); pattern != "" {
		span.SetName(r.Method + " " + pattern)
		span.SetAttributes(attribute.String("http.route", pattern))
	}
	span.SetAttributes(
		semconv.HTTPStatusCode(sw.status),
		attribute.Int("http.response_size", sw.bytes),
	)
	if sw.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(sw.status))
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// scheme prefers TLS state, then a proxy's X-Forwarded-Proto.
func scheme(r *http.Request) string {
	switch {
	case r.TLS != nil:
		return "https"
	case r.Header.Get("X-Forwarded-Proto") != "":
		return r.Header.Get("X-Forwarded-Proto")
	default:
		return "http"
	}
}
