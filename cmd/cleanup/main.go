// Command cleanup deletes terminal forecast jobs older than the retention
// window and exits. Intended for cron or one-off maintenance.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/forecast"
	"github.com/gridcast/gridcast/internal/logging"
	_ "github.com/lib/pq"
	"log/slog"
)

func main() {
	retentionDays := flag.Int("retention-days", 0, "override retention window in days")
	flag.Parse()

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

	retention := cfg.Cleanup.Retention()
	if *retentionDays > 0 {
		retention = time.Duration(*retentionDays) * 24 * time.Hour
	}

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.Database.URL

	db, err := database.Connect(context.Background(), dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	jobRepo := database.NewJobRepository(db)
	service := forecast.NewService(
		database.NewPortfolioRepository(db),
		database.NewSiteRepository(db),
		jobRepo,
		nil, nil, nil,
		logger,
		cfg.Forecast.DefaultHorizonHours,
	)

	deleted, err := service.Cleanup(context.Background(), retention)
	if err != nil {
		logger.Error("cleanup failed", "error", err)
		os.Exit(1)
	}

	logger.Info("cleanup finished", "deleted_jobs", deleted, "retention", retention)
}
