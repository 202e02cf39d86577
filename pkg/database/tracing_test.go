package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func spanAttrs(span tracetest.SpanStub) map[string]string {
	attrs := make(map[string]string, len(span.Attributes))
	for _, a := range span.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

// traceStatement traces one statement the way pgx drives the tracer.
func traceStatement(ctx context.Context, qt *QueryTracer, sql, tag string, err error) {
	ctx = qt.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: sql})
	qt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag(tag), Err: err})
}

func TestQueryTracer_Span(t *testing.T) {
	exporter := setupTestTracer(t)
	const stmt = "SELECT id, title FROM sources WHERE id = ANY($1)"

	traceStatement(WithOperation(context.Background(), "LookupSources"), NewQueryTracer(0, nil), stmt, "SELECT 3", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.LookupSources", span.Name)
	assert.Equal(t, trace.SpanKindClient, span.SpanKind)
	assert.Equal(t, codes.Unset, span.Status.Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "LookupSources", attrs["db.operation"])
	assert.Equal(t, stmt, attrs["db.statement"])
	assert.Equal(t, "3", attrs["db.rows_affected"])
}

func TestQueryTracer_UnnamedStatementUsesVerb(t *testing.T) {
	exporter := setupTestTracer(t)

	traceStatement(context.Background(), NewQueryTracer(0, nil), "  insert into sources (id) values ($1)", "INSERT 0 1", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.INSERT", spans[0].Name)
}

func TestQueryTracer_ErrorMarksSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	traceStatement(context.Background(), NewQueryTracer(0, nil), "INSERT INTO sources", "", errors.New("connection refused"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, spans[0].Events)
}

func TestQueryTracer_ChildOfCallerSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "resolve")
	traceStatement(ctx, NewQueryTracer(0, nil), "SELECT 1", "SELECT 1", nil)
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent.SpanID())
}

func TestQueryTracer_EndWithoutStartIsIgnored(t *testing.T) {
	exporter := setupTestTracer(t)

	NewQueryTracer(time.Nanosecond, nil).TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})

	assert.Empty(t, exporter.GetSpans())
}

func TestQueryTracer_ObservesDuration(t *testing.T) {
	setupTestTracer(t)
	before := testutil.CollectAndCount(QueryDuration)

	traceStatement(WithOperation(context.Background(), "TracerTestOp"), NewQueryTracer(0, nil), "SELECT 1", "", errors.New("boom"))

	assert.Equal(t, before+1, testutil.CollectAndCount(QueryDuration))
}

func TestQueryTracer_SlowQueryLogging(t *testing.T) {
	setupTestTracer(t)

	tests := []struct {
		name    string
		slow    time.Duration
		err     error
		wantLog bool
	}{
		{name: "slow", slow: time.Nanosecond, wantLog: true},
		{name: "slow with error", slow: time.Nanosecond, err: errors.New("unique constraint violation"), wantLog: true},
		{name: "fast", slow: time.Hour},
		{name: "disabled", slow: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			qt := NewQueryTracer(tt.slow, slog.New(slog.NewJSONHandler(&buf, nil)))

			traceStatement(WithOperation(context.Background(), "SlowSelect"), qt, "SELECT * FROM sources", "SELECT 0", tt.err)

			if !tt.wantLog {
				assert.Empty(t, buf.String())
				return
			}
			out := buf.String()
			assert.Contains(t, out, "slow query")
			assert.Contains(t, out, "SlowSelect")
			assert.Contains(t, out, "SELECT * FROM sources")
			if tt.err != nil {
				assert.Contains(t, out, tt.err.Error())
			}
		})
	}
}

func TestPostgresConfig_InstallsTracer(t *testing.T) {
	qt := NewQueryTracer(0, nil)
	pc, err := PostgresConfig{Host: "localhost", Port: 5432, User: "u", DBName: "d", Tracer: qt}.poolConfig()
	require.NoError(t, err)
	assert.Same(t, qt, pc.ConnConfig.Tracer)
}
