// Command server runs the marketsearch HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/marketsearch/internal/app"
	"github.com/utafrali/marketsearch/internal/config"
	"github.com/utafrali/marketsearch/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("marketsearch exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Service: "marketsearch",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("engine", cfg.SearchEngine),
	)

	a, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	if err := a.Run(ctx); err != nil {
		return err
	}

	log.Info("stopped")
	return nil
}
