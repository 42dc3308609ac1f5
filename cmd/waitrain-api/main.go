package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waitrain/waitrain/internal/api"
	"github.com/waitrain/waitrain/internal/api/uistatic"
	"github.com/waitrain/waitrain/internal/config"
	"github.com/waitrain/waitrain/internal/database"
	"github.com/waitrain/waitrain/internal/observability"
	"github.com/waitrain/waitrain/internal/pipeline"
	"github.com/waitrain/waitrain/internal/schema"
)

func main() {
	configPath := flag.String("config", "", "path to the database TOML file (overrides WAITRAIN_CONFIG)")
	flag.Parse()

	cfg, err := config.LoadFromEnv("waitrain-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	// Settings are read on every request so edits to the TOML file apply
	// without a restart.
	loadSettings := func() (config.Settings, error) {
		return config.LoadSettings(*configPath, os.LookupEnv)
	}
	if settings, err := loadSettings(); err != nil {
		logger.Warn("settings not usable yet; requests will fail until fixed", slog.Any("error", err))
	} else {
		logger.Info("settings loaded", slog.String("config", settings.Path))
	}

	pool := database.NewPool()
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("failed to close database pool", slog.Any("error", err))
		}
	}()

	service := pipeline.New(pipeline.Options{
		Settings:  loadSettings,
		Connector: pool,
		Cache:     schema.NewCache(logger),
		Logger:    logger,
	})

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:   logger,
		Pipeline: service,
		UI:       uistatic.Handler(),
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}
}
