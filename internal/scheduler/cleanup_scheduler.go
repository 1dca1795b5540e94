package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner deletes terminal forecast jobs older than the retention window.
type Cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupScheduler periodically removes old terminal forecast jobs and their
// results.
type CleanupScheduler struct {
	cleaner   Cleaner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	stopChan  chan struct{}
}

// NewCleanupScheduler creates a new cleanup scheduler.
func NewCleanupScheduler(cleaner Cleaner, retention, interval time.Duration, logger *slog.Logger) *CleanupScheduler {
	return &CleanupScheduler{
		cleaner:   cleaner,
		retention: retention,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *CleanupScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting cleanup scheduler",
		"retention", s.retention,
		"interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on start
	s.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			s.runCleanup(ctx)
		case <-s.stopChan:
			s.logger.Info("Cleanup scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Cleanup scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler
func (s *CleanupScheduler) Stop() {
	close(s.stopChan)
}

func (s *CleanupScheduler) runCleanup(ctx context.Context) {
	deleted, err := s.cleaner.Cleanup(ctx, s.retention)
	if err != nil {
		s.logger.Error("Failed to clean up old forecast jobs", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("Removed old forecast jobs", "count", deleted)
	}
}
