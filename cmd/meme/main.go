// meme is a deterministic in-memory matching engine for a two-asset spot
// exchange, exposed over HTTP/WebSocket.
//
// Architecture:
//
//	main.go               — entry point: loads config, restores a snapshot, starts the server
//	internal/domain       — accounts, balances, orders, the price-time-priority order book
//	internal/repo         — the root aggregate: accounts/orders/exchanges, revision, dedup filters
//	internal/events       — the closed set of committable state transitions
//	internal/snapshot     — atomic JSON persistence of a Repository
//	internal/api          — the HTTP/WebSocket façade, serializing access to one Repository
//
// Every state change is a build-then-commit event: a handler calls one of
// internal/events' Build* functions against a read-locked Repository, then
// submits the result through Repository.Commit under a write lock. Commit
// rejects anything built against a now-stale revision, so two concurrent
// writers never silently clobber each other.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Fleurer/meme/internal/api"
	"github.com/Fleurer/meme/internal/config"
	"github.com/Fleurer/meme/internal/repo"
	"github.com/Fleurer/meme/internal/snapshot"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MEME_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	r, err := snapshot.Load(cfg.Snapshot.Path)
	if err != nil {
		logger.Error("failed to load snapshot", "error", err, "path", cfg.Snapshot.Path)
		os.Exit(1)
	}
	if r == nil {
		logger.Info("no snapshot found, starting from an empty repository", "path", cfg.Snapshot.Path)
		r = repo.New()
	} else {
		logger.Info("restored repository from snapshot", "revision", r.Revision())
	}

	srv := api.NewServer(cfg.Server, r, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.SaveSnapshotLoop(ctx, cfg.Snapshot.SaveInterval, func(repository *repo.Repository) error {
		return snapshot.Save(repository, cfg.Snapshot.Path)
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", "error", err)
		}
	}()
	logger.Info("matching engine started", "url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	if err := srv.Stop(); err != nil {
		logger.Error("failed to stop server", "error", err)
	}
	if err := snapshot.Save(r, cfg.Snapshot.Path); err != nil {
		logger.Error("failed to save final snapshot", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
