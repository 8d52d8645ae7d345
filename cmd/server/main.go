package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/isupipe/internal/api"
	"github.com/npezzotti/isupipe/internal/config"
	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/enrich"
	"github.com/npezzotti/isupipe/internal/feed"
	"github.com/npezzotti/isupipe/internal/logging"
	"github.com/npezzotti/isupipe/internal/stats"
)

var configPath string

func main() {
	flag.StringVar(&configPath, "config", "", "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.New(logging.Config{}).Fatal().Err(err).Msg("config")
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	store, err := database.Open(cfg.Database.DSN, database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("db close")
		}
	}()

	if cfg.MigrateOnStart {
		if err := store.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		logger.Info().Msg("migrations applied")
	}

	fallbackIcon, err := os.ReadFile(cfg.FallbackIconPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.FallbackIconPath).Msg("read fallback icon")
	}

	hub := feed.NewHub(logger, stats.NewStatsUpdater())
	go hub.Run()

	srv := api.NewApp(logger, store, hub, enrich.StaticFallbackIcon(fallbackIcon), cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server")
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}

	logger.Info().Msg("shutting down feed hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("feed hub shutdown")
	}

	logger.Info().Msg("shutdown complete")
}
