// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vssflow/internal/api"
	"github.com/starford/vssflow/internal/drafts"
	"github.com/starford/vssflow/internal/mcpserver"
	"github.com/starford/vssflow/internal/mockapi"
)

func setup(opts []Option) (*Config, *slog.Logger, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.Bool("metrics", cfg.Metrics.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return cfg, logger, nil
}

// newRouter builds the root HTTP router.
func newRouter(cfg *Config, svc *services, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; SSE shares the auth group.
	r.Mount("/api", api.NewRouter(svc.sessions, svc.draftStore(), cfg.Auth.AuthEnabled(), cfg.Auth.Token, svc.broker))

	if svc.mockDB != nil {
		r.Mount("/mock-api", mockapi.NewRouter(svc.mockDB, logger.With(slog.String("component", "mockapi"))))
	}
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, svc.metrics.Handler())
	}
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start drafts watcher with SSE callback.
	if svc.draftFS != nil && cfg.Drafts.Watch {
		g.Go(func() error {
			err := drafts.Watch(gCtx, svc.draftFS, logger, func(kind, path string) {
				svc.broker.PublishDraftEvent(kind, path)
			})
			if err != nil {
				logger.Warn("drafts watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Expire idle editor sessions.
	g.Go(func() error {
		return svc.sessions.Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so background workers stop with
// the HTTP server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the editor tools over MCP stdio. The mock backend, when
// enabled, is served on the configured HTTP port so the tools have a
// scripts API to call.
func RunMCP(ctx context.Context, opts ...Option) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	g, gCtx := errgroup.WithContext(ctx)

	if svc.mockDB != nil {
		r := chi.NewRouter()
		r.Mount("/mock-api", mockapi.NewRouter(svc.mockDB, logger))
		mockServer := &http.Server{Addr: cfg.App.HTTP.Address(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			if err := mockServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mock backend error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return mockServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return svc.sessions.Run(gCtx)
	})

	var draftStore mcpserver.DraftStore
	if svc.drafts != nil {
		draftStore = svc.drafts
	}
	srv := mcpserver.New(svc.sessions, draftStore, logger)
	g.Go(func() error {
		logger.Info("Starting MCP server on stdio")
		err := srv.ServeStdio()
		if err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}
