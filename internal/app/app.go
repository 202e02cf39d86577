// Package app assembles the search service from configuration and owns its
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/marketsearch/internal/config"
	"github.com/utafrali/marketsearch/internal/event"
	handler "github.com/utafrali/marketsearch/internal/handler/http"
	"github.com/utafrali/marketsearch/internal/orchestrator"
	"github.com/utafrali/marketsearch/internal/service"
	"github.com/utafrali/marketsearch/pkg/health"
	"github.com/utafrali/marketsearch/pkg/middleware"
)

const (
	bootTimeout  = 15 * time.Second
	drainTimeout = 5 * time.Second
	closeTimeout = 3 * time.Second
)

// closer releases one resource at shutdown.
type closer struct {
	name  string
	close func(context.Context) error
}

// App is a fully wired search service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	health      *health.Handler
	diagnostics *event.Producer
	registry    *orchestrator.Registry
	server      *http.Server

	// closers run in reverse order of acquisition.
	closers []closer
}

// NewApp connects every configured dependency and builds the HTTP server.
// Postgres, Redis and Kafka are optional. On failure everything acquired so
// far is released.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), bootTimeout)
	defer cancel()

	a := &App{cfg: cfg, logger: logger, health: health.NewHandler()}
	if err := a.wire(ctx); err != nil {
		_ = a.release()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	if err := a.initTracing(ctx); err != nil {
		return err
	}
	eng, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	a.health.RegisterCritical("search_engine", eng.Ping)

	sources, err := a.openSources(ctx)
	if err != nil {
		return err
	}
	modes, err := a.openModes(ctx)
	if err != nil {
		return err
	}
	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return err
	}
	a.diagnostics = event.NewProducer(publisher, cfg.DiagnosticsTopic, logger)
	a.onClose("diagnostics", func(context.Context) error {
		a.diagnostics.Wait()
		return nil
	})

	searcher := service.NewSearchService(eng, service.NewResolver(sources, logger), a.diagnostics, logger)
	a.registry = orchestrator.NewRegistry(
		searcher,
		service.NewPreferences(modes, logger),
		orchestrator.Config{Debounce: cfg.Debounce, QueryTimeout: cfg.QueryTimeout},
		cfg.SessionTTL,
		logger,
	)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	// No WriteTimeout: event streams stay open. Other routes are bounded by
	// the router's request timeout.
	a.server = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler.NewRouter(handler.RouterConfig{
			Searcher:          searcher,
			Registry:          a.registry,
			Health:            a.health,
			Logger:            logger,
			CORS:              cors,
			PprofCIDRs:        cfg.PprofAllowedCIDRs,
			RequestTimeout:    cfg.RequestTimeout,
			SearchCacheMaxAge: cfg.SearchCacheMaxAge,
			Heartbeat:         cfg.SSEHeartbeat,
			RateLimitRPS:      cfg.RateLimitRPS,
			RateLimitBurst:    cfg.RateLimitBurst,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// Run serves HTTP and sweeps idle sessions until ctx is canceled or the
// server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.registry.Run(gctx, a.cfg.SweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("shutdown requested")
		}
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown ends open sessions and their event streams, drains in-flight
// requests, then releases dependencies newest first so pending diagnostics
// are flushed before the Kafka writer closes.
func (a *App) Shutdown() error {
	a.registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("http drain failed", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.release(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) release() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := c.close(ctx); err != nil {
			a.logger.Error("close failed", slog.String("resource", c.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
		cancel()
	}
	a.closers = nil
	return errors.Join(errs...)
}
