package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/history"
	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/metrics"
	"github.com/JonMunkholm/csvmerge/internal/profile"
	"github.com/JonMunkholm/csvmerge/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"history", historyKind(cfg),
		"merge_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	profiles, err := loadProfiles(cfg.Merge)
	if err != nil {
		slog.Error("failed to load merge profiles", "error", err)
		os.Exit(1)
	}
	for _, p := range profiles.List() {
		slog.Debug("merge profile", "name", p.Name, "key_column", p.KeyColumn, "filter", p.Filter.Describe(p.KeyColumn))
	}

	ctx := context.Background()
	store, err := openHistory(ctx, cfg)
	if err != nil {
		slog.Error("failed to open run history", "error", err)
		os.Exit(1)
	}

	service := core.NewService(cfg, profiles, store, metrics.New())
	defer service.Close()

	// Start history retention in background
	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go service.StartRetentionScheduler(schedCtx, service.RetentionFromConfig())

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}

func loadProfiles(cfg config.MergeConfig) (*profile.Set, error) {
	if cfg.ProfilesFile == "" {
		return profile.Builtin(cfg), nil
	}
	set, err := profile.Load(cfg.ProfilesFile, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("merge profiles loaded", "file", cfg.ProfilesFile, "count", len(set.List()))
	return set, nil
}

// openHistory connects to PostgreSQL when DATABASE_URL is set and falls back
// to an in-memory ring otherwise.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	if !cfg.Database.Enabled() {
		return history.NewMemoryStore(cfg.Merge.HistorySize), nil
	}

	pool, err := history.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store, err := history.NewPGStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func historyKind(cfg *config.Config) string {
	if cfg.Database.Enabled() {
		return "postgres"
	}
	return "memory"
}
