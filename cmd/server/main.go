package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridcast/gridcast/internal/api"
	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/forecast"
	"github.com/gridcast/gridcast/internal/logging"
	"github.com/gridcast/gridcast/internal/metrics"
	"github.com/gridcast/gridcast/internal/scheduler"
	"github.com/gridcast/gridcast/internal/server"
	_ "github.com/lib/pq"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting gridcast")

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.Database.URL
	dbConfig.MaxConnections = cfg.Database.MaxConnections
	dbConfig.MaxIdleConnections = cfg.Database.MaxIdleConns

	logger.Info("connecting to database")
	db, err := database.Connect(context.Background(), dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, cfg.Database.MigrationsDir, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	siteRepo := database.NewSiteRepository(db)
	portfolioRepo := database.NewPortfolioRepository(db)
	jobRepo := database.NewJobRepository(db)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Prediction models: a fixed seed makes every forecast reproducible
	registry := forecast.NewRegistry()
	if cfg.Forecast.Seed != 0 {
		logger.Info("using seeded forecast models", "seed", cfg.Forecast.Seed)
		seeded := forecast.NewSeededSyntheticModel(cfg.Forecast.Seed)
		for _, siteType := range registry.RegisteredTypes() {
			if err := registry.Register(siteType, seeded); err != nil {
				logger.Error("failed to register seeded model", "error", err)
				os.Exit(1)
			}
		}
		if err := registry.SetDefault(seeded); err != nil {
			logger.Error("failed to set default model", "error", err)
			os.Exit(1)
		}
	}

	service := forecast.NewService(
		portfolioRepo,
		siteRepo,
		jobRepo,
		registry,
		nil,
		collector,
		logger,
		cfg.Forecast.DefaultHorizonHours,
	)

	// HTTP routes
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.HealthCheck(r.Context(), db); err != nil {
			logger.Error("health check failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"gridcast","status":"ready","version":"0.1.0"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, protected endpoints will reject all tokens")
	}

	logger.Info("setting up REST API")
	api.SetupRoutes(mux, siteRepo, portfolioRepo, service, cfg.Auth, cfg.Cleanup.Retention(), logger)

	// Retention scheduler
	var cleanupScheduler *scheduler.CleanupScheduler
	if cfg.Cleanup.Enabled {
		logger.Info("starting cleanup scheduler")
		cleanupScheduler = scheduler.NewCleanupScheduler(service, cfg.Cleanup.Retention(), cfg.Cleanup.Interval, logger)
		go cleanupScheduler.Start(context.Background())
	}

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("gridcast started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	if cleanupScheduler != nil {
		cleanupScheduler.Stop()
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
