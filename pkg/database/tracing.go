package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/marketsearch/pkg/tracing"
)

// QueryDuration observes statement latency.
var QueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "marketsearch_db_query_duration_seconds",
		Help:    "PostgreSQL statement latency by operation and outcome.",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	},
	[]string{"operation", "outcome"},
)

type operationKey struct{}

type queryKey struct{}

type inflight struct {
	operation string
	sql       string
	start     time.Time
	span      trace.Span
}

// WithOperation names the statements issued with ctx, e.g. "LookupSources".
// Unnamed statements are labelled by their SQL verb.
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey{}, name)
}

func operation(ctx context.Context, sql string) string {
	if name, ok := ctx.Value(operationKey{}).(string); ok && name != "" {
		return name
	}
	verb, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	if verb == "" {
		return "unknown"
	}
	return strings.ToUpper(verb)
}

// QueryTracer is a pgx.QueryTracer. Every statement becomes a client span
// and a latency observation; statements slower than the threshold are
// logged at warn.
type QueryTracer struct {
	slow   time.Duration
	logger *slog.Logger
	tracer trace.Tracer
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

// NewQueryTracer creates a tracer. A non-positive threshold or a nil logger
// disables slow statement logging.
func NewQueryTracer(slow time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{slow: slow, logger: logger, tracer: tracing.Tracer("database")}
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := operation(ctx, data.SQL)
	ctx, span := t.tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", data.SQL),
		),
	)
	return context.WithValue(ctx, queryKey{}, &inflight{operation: op, sql: data.SQL, start: time.Now(), span: span})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	q, ok := ctx.Value(queryKey{}).(*inflight)
	if !ok {
		return
	}
	elapsed := time.Since(q.start)

	outcome := "ok"
	if data.Err != nil {
		outcome = "error"
		q.span.RecordError(data.Err)
		q.span.SetStatus(codes.Error, data.Err.Error())
	} else {
		q.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	q.span.End()
	QueryDuration.WithLabelValues(q.operation, outcome).Observe(elapsed.Seconds())

	if t.slow <= 0 || t.logger == nil || elapsed < t.slow {
		return
	}
	attrs := []any{
		slog.String("operation", q.operation),
		slog.String("statement", q.sql),
		slog.Duration("duration", elapsed),
	}
	if data.Err != nil {
		attrs = append(attrs, slog.String("error", data.Err.Error()))
	}
	t.logger.WarnContext(ctx, "slow query", attrs...)
}
