package core

// scheduler.go runs background maintenance for the service.
//
// The retention job deletes run history older than the configured retention
// window. It runs once at start, then on every tick until ctx is cancelled.
// Failures are logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls the history retention job.
type RetentionConfig struct {
	MaxAge        time.Duration // Runs older than this are deleted (0 disables the job)
	CheckInterval time.Duration // How often to prune (default: 1h)
}

// RetentionFromConfig reads the retention settings of the service config.
func (s *Service) RetentionFromConfig() RetentionConfig {
	return RetentionConfig{
		MaxAge:        s.cfg.Merge.HistoryRetention,
		CheckInterval: s.cfg.Merge.HistoryPruneInterval,
	}
}

// StartRetentionScheduler blocks, pruning expired history until ctx is
// cancelled. Run it in its own goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	if cfg.MaxAge <= 0 {
		slog.Info("history retention disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}

	slog.Info("retention scheduler started",
		"max_age", cfg.MaxAge,
		"interval", cfg.CheckInterval,
	)

	s.runRetentionJob(ctx, cfg.MaxAge)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg.MaxAge)
		}
	}
}

func (s *Service) runRetentionJob(ctx context.Context, maxAge time.Duration) {
	start := time.Now()
	pruned, err := s.PruneHistory(ctx, start.Add(-maxAge))
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned run history",
		"runs_pruned", pruned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// PruneHistory deletes runs started before the cutoff.
func (s *Service) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	return s.history.Prune(ctx, before)
}
