// Package api exposes the matching engine's Repository over HTTP and
// WebSocket: one handler per event-build-then-commit operation, read-only
// projections for accounts/orders/exchanges, and a GET /stream broadcast
// of every successful commit. Repository itself carries no lock (see
// internal/repo), so Server is the "surrounding collaborator" the core's
// concurrency model defers serialization to: one RWMutex, write-locked
// around Commit and read-locked around reads, so a reader never observes
// a partially applied event and two concurrent commits never race.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Fleurer/meme/internal/config"
	"github.com/Fleurer/meme/internal/events"
	"github.com/Fleurer/meme/internal/repo"
)

// Server runs the matching engine's HTTP/WebSocket façade around a single
// process-wide Repository.
type Server struct {
	cfg      config.ServerConfig
	repo     *repo.Repository
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger

	mu sync.RWMutex
}

// NewServer builds the façade's mux and http.Server around r.
func NewServer(cfg config.ServerConfig, r *repo.Repository, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		repo:   r,
		hub:    NewHub(logger),
		logger: logger.With("component", "api-server"),
	}

	s.handlers = NewHandlers(cfg, s.hub, s.commit, s.withReadLock, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handlers.HandleHealth)
	mux.HandleFunc("GET /snapshot", s.handlers.HandleSnapshot)
	mux.HandleFunc("GET /stream", s.handlers.HandleStream)

	mux.HandleFunc("POST /accounts", s.handlers.HandleCreateAccount)
	mux.HandleFunc("DELETE /accounts/{id}", s.handlers.HandleDeleteAccount)
	mux.HandleFunc("GET /accounts/{id}", s.handlers.HandleGetAccount)
	mux.HandleFunc("POST /accounts/{id}/credit", s.handlers.HandleCredit)
	mux.HandleFunc("POST /accounts/{id}/debit", s.handlers.HandleDebit)

	mux.HandleFunc("POST /exchanges", s.handlers.HandleCreateExchange)
	mux.HandleFunc("GET /exchanges/{id}", s.handlers.HandleGetExchange)
	mux.HandleFunc("POST /exchanges/{id}/match", s.handlers.HandleMatch)

	mux.HandleFunc("POST /orders", s.handlers.HandleCreateOrder)
	mux.HandleFunc("DELETE /orders/{id}", s.handlers.HandleDeleteOrder)
	mux.HandleFunc("GET /orders/{id}", s.handlers.HandleGetOrder)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start runs the stream hub and blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("matching engine server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping matching engine server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// commit serializes a single event commit against every other commit and
// every in-flight read: the write lock is held only around the already-
// atomic Apply call, so the critical section is O(1) events deep.
func (s *Server) commit(ev *events.Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Commit(ev); err != nil {
		return 0, err
	}
	return s.repo.Revision(), nil
}

// withReadLock runs fn with a read lock held, so it observes a
// consistent repository state that no concurrent commit can partially
// mutate underneath it.
func (s *Server) withReadLock(fn func(*repo.Repository)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.repo)
}

// SaveSnapshotLoop periodically passes the repository to save every
// interval until ctx is cancelled, logging (not failing) on a write
// error so a transient disk issue never brings the process down.
func (s *Server) SaveSnapshotLoop(ctx context.Context, interval time.Duration, save func(*repo.Repository) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			err := save(s.repo)
			s.mu.RUnlock()
			if err != nil {
				s.logger.Error("periodic snapshot save failed", "error", err)
			}
		}
	}
}
