package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/marketsearch/pkg/tracing"
)

// Message header keys set on every published event.
const (
	HeaderEventType     = "event_type"
	HeaderSource        = "source"
	HeaderContentType   = "content-type"
	HeaderCorrelationID = "correlation_id"
)

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	// Compression is none, gzip, snappy, lz4 or zstd.
	Compression string
}

// DefaultProducerConfig returns producer settings tuned for small,
// latency-sensitive diagnostic events.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		ClientID:     "marketsearch",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Compression:  "snappy",
	}
}

func parseCompression(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("kafka: unknown compression %q", name)
	}
}

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes. Each publish is synchronous and waits
// for every in-sync replica.
type Producer struct {
	writer  messageWriter
	brokers []string
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewProducer creates a producer. No connection is made until the first
// publish or Ping.
func NewProducer(cfg ProducerConfig, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	compression, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Compression:  compression,
		RequiredAcks: kafka.RequireAll,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
	return newProducer(w, cfg.Brokers, logger), nil
}

func newProducer(w messageWriter, brokers []string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		writer:  w,
		brokers: brokers,
		tracer:  tracing.Tracer("kafka"),
		logger:  logger,
	}
}

// Publish writes event to topic keyed by event.Key. A producer span is
// started and its context travels in the message headers.
func (p *Producer) Publish(ctx context.Context, topic string, event *Event) error {
	ctx, span := p.tracer.Start(ctx, topic+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", topic),
			attribute.String("messaging.message.id", event.ID),
			attribute.String("marketsearch.event_type", event.Type),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		publishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}()

	value, err := event.Marshal()
	if err != nil {
		publishedTotal.WithLabelValues(topic, "encode_error").Inc()
		span.SetStatus(codes.Error, "encode")
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(event.Type)},
		{Key: HeaderSource, Value: []byte(event.Source)},
		{Key: HeaderContentType, Value: []byte("application/json")},
	}
	if event.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(event.CorrelationID)})
	}
	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&headers))

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(event.Key),
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		publishedTotal.WithLabelValues(topic, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "write")
		p.logger.ErrorContext(ctx, "kafka publish failed",
			slog.String("topic", topic),
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish event to %s: %w", topic, err)
	}

	publishedTotal.WithLabelValues(topic, "ok").Inc()
	publishBytes.WithLabelValues(topic).Add(float64(len(value)))
	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("event_type", event.Type),
		slog.String("event_id", event.ID),
	)
	return nil
}

// Ping reports whether any configured broker answers a metadata request.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// PingBrokers returns nil once one broker answers a metadata request.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}

	var errs []error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
	}
	return fmt.Errorf("kafka ping: all brokers unreachable: %w", errors.Join(errs...))
}

// Close flushes buffered messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
