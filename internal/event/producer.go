package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/marketsearch/internal/service"
	pkgkafka "github.com/utafrali/marketsearch/pkg/kafka"
	"github.com/utafrali/marketsearch/pkg/logger"
)

// TopicNoResults is the default topic for search diagnostics.
var TopicNoResults = pkgkafka.Topic("search", "no_results")

const (
	// EventTypeNoResults is the envelope type of a zero-hit diagnostic.
	EventTypeNoResults = "search.no_results"

	// SourceSearchService identifies events published by this service.
	SourceSearchService = "marketsearch"
)

// publishTimeout bounds a diagnostic publish detached from its request.
const publishTimeout = 5 * time.Second

// NoResultsData is the payload for a search.no_results event.
type NoResultsData struct {
	Query    string `json:"query"`
	Mode     string `json:"mode"`
	Surface  string `json:"surface"`
	Filters  string `json:"filters,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Publisher sends an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes search diagnostics to Kafka. Every diagnostic is logged;
// with a nil publisher logging is all it does.
type Producer struct {
	kafka  Publisher
	topic  string
	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ service.NoResultsReporter = (*Producer)(nil)

// NewProducer creates a new diagnostics producer. An empty topic uses
// TopicNoResults.
func NewProducer(kafka Publisher, topic string, logger *slog.Logger) *Producer {
	if topic == "" {
		topic = TopicNoResults
	}
	return &Producer{
		kafka:  kafka,
		topic:  topic,
		logger: logger,
	}
}

// ReportNoResults logs the diagnostic and publishes it in the background so
// the search path never waits on the broker.
func (p *Producer) ReportNoResults(ctx context.Context, ev service.NoResultsEvent) {
	p.logger.InfoContext(ctx, "search returned no results",
		slog.String("query", ev.Query),
		slog.String("mode", ev.Mode.String()),
		slog.String("surface", ev.Surface),
		slog.String("filters", ev.Filters),
	)
	if p.kafka == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		if err := p.PublishNoResults(pubCtx, ev); err != nil {
			p.logger.WarnContext(pubCtx, "failed to publish search diagnostic",
				slog.String("topic", p.topic),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// PublishNoResults publishes a search.no_results event.
func (p *Producer) PublishNoResults(ctx context.Context, ev service.NoResultsEvent) error {
	data := NoResultsData{
		Query:    ev.Query,
		Mode:     ev.Mode.String(),
		Surface:  ev.Surface,
		Filters:  ev.Filters,
		ClientID: ev.ClientID,
	}

	event, err := pkgkafka.NewEvent(EventTypeNoResults, ev.Query, SourceSearchService, data)
	if err != nil {
		return fmt.Errorf("create search.no_results event: %w", err)
	}
	if id := logger.CorrelationID(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	event.WithMetadata("mode", data.Mode).WithMetadata("surface", data.Surface)

	if err := p.kafka.Publish(ctx, p.topic, event); err != nil {
		return fmt.Errorf("publish search.no_results event: %w", err)
	}

	p.logger.DebugContext(ctx, "published search.no_results event",
		slog.String("query", ev.Query),
		slog.String("mode", data.Mode),
	)
	return nil
}

// Wait blocks until background publishes finish.
func (p *Producer) Wait() {
	p.wg.Wait()
}
