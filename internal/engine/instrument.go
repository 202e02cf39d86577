package engine

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/pkg/tracing"
)

var (
	// IndexRequestDuration observes index request latency per backend and mode.
	IndexRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_index_request_duration_seconds",
			Help:    "Duration of search index requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "mode", "outcome"},
	)

	// IndexHitsReturned observes the number of hits per index response.
	IndexHitsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_index_hits_returned",
			Help:    "Number of hits returned per search index request",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		},
		[]string{"backend", "mode"},
	)
)

type instrumented struct {
	next    SearchEngine
	backend string
	tracer  trace.Tracer
}

// Instrument wraps next with tracing spans and Prometheus metrics. Errors
// that do not already wrap domain.ErrIndexUnavailable are wrapped with it.
func Instrument(next SearchEngine, backend string) SearchEngine {
	return &instrumented{
		next:    next,
		backend: backend,
		tracer:  tracing.Tracer("engine"),
	}
}

func (i *instrumented) Search(ctx context.Context, mode domain.Mode, query string, opts SearchOptions) (*domain.RawResult, error) {
	ctx, span := i.tracer.Start(ctx, "engine.Search",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("search.backend", i.backend),
			attribute.String("search.mode", mode.String()),
			attribute.Int("search.limit", opts.Limit),
			attribute.Int("search.offset", opts.Offset),
			attribute.String("search.sort", opts.Sort.String()),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := i.next.Search(ctx, mode, query, opts)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		IndexRequestDuration.WithLabelValues(i.backend, mode.String(), "error").Observe(elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			err = errors.Join(domain.ErrIndexUnavailable, err)
		}
		return nil, err
	}

	IndexRequestDuration.WithLabelValues(i.backend, mode.String(), "success").Observe(elapsed)
	IndexHitsReturned.WithLabelValues(i.backend, mode.String()).Observe(float64(res.Len()))
	span.SetAttributes(attribute.Int("search.hits", res.Len()), attribute.Int64("search.total", res.Total))
	return res, nil
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}
