package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/marketsearch/internal/config"
	"github.com/utafrali/marketsearch/internal/engine"
	esengine "github.com/utafrali/marketsearch/internal/engine/elasticsearch"
	meiliengine "github.com/utafrali/marketsearch/internal/engine/meilisearch"
	"github.com/utafrali/marketsearch/internal/engine/memory"
	"github.com/utafrali/marketsearch/internal/event"
	handler "github.com/utafrali/marketsearch/internal/handler/http"
	"github.com/utafrali/marketsearch/internal/repository"
	"github.com/utafrali/marketsearch/internal/repository/postgres"
	redisrepo "github.com/utafrali/marketsearch/internal/repository/redis"
	"github.com/utafrali/marketsearch/migrations"
	"github.com/utafrali/marketsearch/pkg/database"
	"github.com/utafrali/marketsearch/pkg/httpclient"
	pkgkafka "github.com/utafrali/marketsearch/pkg/kafka"
	"github.com/utafrali/marketsearch/pkg/retry"
	"github.com/utafrali/marketsearch/pkg/tracing"
)

func (a *App) initTracing(ctx context.Context) error {
	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName: handler.ServiceName,
		Environment: a.cfg.Environment,
		Endpoint:    a.cfg.OTELEndpoint,
		SampleRate:  a.cfg.OTELSampleRate,
		Enabled:     a.cfg.OTELEnabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	// Registered first so spans emitted while closing the rest still flush.
	a.onClose("tracer", shutdown)
	return nil
}

// newEngine builds the configured backend wrapped with metrics and tracing.
// Remote backends also report their circuit breaker as a non-critical check.
func (a *App) newEngine(ctx context.Context) (engine.SearchEngine, error) {
	cfg, logger := a.cfg, a.logger
	indices := engine.IndexNames{Products: cfg.IndexProducts, Suppliers: cfg.IndexSuppliers}
	client := func(name string) *http.Client {
		opts := httpclient.DefaultOptions(name)
		opts.Timeout = cfg.EngineHTTPTimeout
		opts.Retry.MaxRetries = cfg.EngineMaxRetries
		hc, breaker := httpclient.New(opts, logger)
		a.health.RegisterNonCritical(name+"_circuit", breaker.Check)
		return hc
	}

	var (
		eng engine.SearchEngine
		err error
	)
	switch cfg.SearchEngine {
	case config.EngineMeilisearch:
		eng, err = meiliengine.New(meiliengine.Config{
			Host:          cfg.MeilisearchHost,
			APIKey:        cfg.MeilisearchAPIKey,
			Indices:       indices,
			HTTPClient:    client(config.EngineMeilisearch),
			EnsureIndices: cfg.MeilisearchEnsureIndices,
		}, logger)

	case config.EngineElasticsearch:
		eng, err = esengine.New(esengine.Config{
			URL:           cfg.ElasticsearchURL,
			Indices:       indices,
			Transport:     client(config.EngineElasticsearch).Transport,
			EnsureIndices: cfg.ElasticsearchEnsureIndices,
		}, logger)

	default:
		mem := memory.New()
		if cfg.MemorySeedPath != "" {
			err = mem.LoadFile(ctx, cfg.MemorySeedPath)
		}
		eng = mem
	}
	if err != nil {
		return nil, fmt.Errorf("init %s engine: %w", cfg.SearchEngine, err)
	}

	logger.Info("search engine ready",
		slog.String("engine", cfg.SearchEngine),
		slog.String("products_index", cfg.IndexProducts),
		slog.String("suppliers_index", cfg.IndexSuppliers),
	)
	return engine.Instrument(eng, cfg.SearchEngine), nil
}

// openSources connects the source directory, applying migrations. Without
// Postgres every source resolves to the fallback title.
func (a *App) openSources(ctx context.Context) (repository.SourceRepository, error) {
	cfg := a.cfg
	if !cfg.PostgresEnabled() {
		a.logger.Warn("no source directory configured, supplier sources resolve to the fallback title")
		return nil, nil
	}

	pgCfg := cfg.Postgres(handler.ServiceName)
	pgCfg.Tracer = database.NewQueryTracer(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	pool, err := database.OpenPostgres(ctx, pgCfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, err
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, "sources", pool); err != nil {
		a.logger.Warn("pool metrics unavailable", slog.String("error", err.Error()))
	}
	a.health.RegisterNonCritical("postgres", pool.Ping)

	a.logger.Info("source directory ready",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)
	return postgres.NewSourceRepository(pool), nil
}

// openModes connects the shared mode store. Without Redis each process
// remembers modes only for its own sessions.
func (a *App) openModes(ctx context.Context) (repository.ModeRepository, error) {
	cfg := a.cfg
	if !cfg.RedisEnabled() {
		return nil, nil
	}

	client, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.onClose("redis", func(context.Context) error { return client.Close() })
	a.health.RegisterNonCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	a.logger.Info("mode store ready", slog.String("host", cfg.RedisHost), slog.Int("port", cfg.RedisPort))
	return redisrepo.NewModeRepository(client, cfg.ModeStoreTTL), nil
}

// openPublisher creates the Kafka writer for diagnostics. An unreachable
// broker at boot degrades the service instead of failing it. The result is
// a nil interface when Kafka is off.
func (a *App) openPublisher(ctx context.Context) (event.Publisher, error) {
	cfg := a.cfg
	if !cfg.KafkaEnabled() {
		return nil, nil
	}

	kcfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	kcfg.Compression = cfg.KafkaCompression
	producer, err := pkgkafka.NewProducer(kcfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	a.onClose("kafka", func(context.Context) error { return producer.Close() })
	a.health.RegisterNonCritical("kafka", producer.Ping)

	if err := retry.Startup().Do(ctx, "ping kafka", a.logger, producer.Ping); err != nil {
		a.logger.Warn("kafka unreachable, diagnostics degraded", slog.String("error", err.Error()))
	} else {
		a.logger.Info("diagnostics publisher ready", slog.Any("brokers", cfg.KafkaBrokers))
	}
	return producer, nil
}
