// Command seed loads a catalog fixture into Elasticsearch or Meilisearch and,
// when Postgres is configured, the source directory. Connection settings come from the
// same environment as the server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/marketsearch/internal/config"
	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
	esengine "github.com/utafrali/marketsearch/internal/engine/elasticsearch"
	meiliengine "github.com/utafrali/marketsearch/internal/engine/meilisearch"
	"github.com/utafrali/marketsearch/internal/repository/postgres"
	"github.com/utafrali/marketsearch/internal/seed"
	"github.com/utafrali/marketsearch/migrations"
	"github.com/utafrali/marketsearch/pkg/database"
	"github.com/utafrali/marketsearch/pkg/logger"
)

func main() {
	path := flag.String("file", "seed.json", "seed file to load")
	reset := flag.Bool("reset", false, "drop and recreate the indices first")
	batch := flag.Int("batch", seed.DefaultBatchSize, "documents per bulk request")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(logger.Options{Service: "marketsearch-seed", Level: cfg.LogLevel, Format: cfg.LogFormat})

	if cfg.SearchEngine == config.EngineMemory {
		log.Error("the memory engine reads MEMORY_SEED_PATH at startup; nothing to seed",
			slog.String("engine", cfg.SearchEngine),
		)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, *path, *reset, *batch); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, path string, reset bool, batch int) error {
	file, err := seed.ReadFile(path)
	if err != nil {
		return err
	}

	if reset {
		target, err := openTarget(cfg, log, false)
		if err != nil {
			return err
		}
		for _, mode := range domain.ValidModes() {
			if err := target.DeleteIndex(ctx, mode); err != nil {
				return err
			}
		}
	}
	target, err := openTarget(cfg, log, true)
	if err != nil {
		return err
	}

	loader := &seed.Loader{Index: target, BatchSize: batch, Logger: log}
	if cfg.PostgresEnabled() {
		pgCfg := cfg.Postgres("marketsearch-seed")
		pgCfg.MaxConns, pgCfg.MinConns = 2, 1
		pool, err := database.OpenPostgres(ctx, pgCfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
			return err
		}
		loader.Sources = postgres.NewSourceRepository(pool)
	}

	start := time.Now()
	st, err := loader.Run(ctx, file)
	log.Info("seed finished",
		slog.Int("sources", st.Sources),
		slog.Int("products", st.Products),
		slog.Int("suppliers", st.Suppliers),
		slog.Duration("took", time.Since(start)),
	)
	return err
}

// indexTarget is a search backend the seed can write to.
type indexTarget interface {
	seed.Indexer
	DeleteIndex(ctx context.Context, mode domain.Mode) error
}

// openTarget connects to the configured engine. With ensure set, indices
// are prepared for facets and sorting before anything is written.
func openTarget(cfg *config.Config, log *slog.Logger, ensure bool) (indexTarget, error) {
	indices := engine.IndexNames{Products: cfg.IndexProducts, Suppliers: cfg.IndexSuppliers}
	if cfg.SearchEngine == config.EngineMeilisearch {
		return meiliengine.New(meiliengine.Config{
			Host:          cfg.MeilisearchHost,
			APIKey:        cfg.MeilisearchAPIKey,
			Indices:       indices,
			EnsureIndices: ensure,
		}, log)
	}
	return esengine.New(esengine.Config{
		URL:           cfg.ElasticsearchURL,
		Indices:       indices,
		EnsureIndices: ensure,
	}, log)
}
