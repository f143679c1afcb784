// Package main is the entrypoint for the TableLens API server.
package main

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

	"github.com/kiranshivaraju/tablelens/internal/actions"
	"github.com/kiranshivaraju/tablelens/internal/analytics"
	"github.com/kiranshivaraju/tablelens/internal/api"
	"github.com/kiranshivaraju/tablelens/internal/api/handler"
	mw "github.com/kiranshivaraju/tablelens/internal/api/middleware"
	"github.com/kiranshivaraju/tablelens/internal/cache"
	"github.com/kiranshivaraju/tablelens/internal/config"
	"github.com/kiranshivaraju/tablelens/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"analytics_enabled", cfg.Analytics.Enabled(),
		"bootstrap_admin", cfg.Auth.AdminCode != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Analytics client, optional
	ac := newAnalyticsClient(cfg.Analytics)
	if ac != nil {
		slog.Info("analytics client initialized", "base_url", cfg.Analytics.BaseURL)
	}

	// 6. Build router
	pgStore := store.NewPostgresStore(pool)
	router := newRouter(cfg, pgStore, redisCache, ac)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newAnalyticsClient returns nil when no analytics service is configured.
// The return is an interface so that nil stays an untyped nil downstream.
func newAnalyticsClient(cfg config.AnalyticsConfig) analytics.Client {
	if !cfg.Enabled() {
		return nil
	}
	return analytics.NewHTTPClient(cfg.BaseURL, cfg.Token, cfg.Timeout)
}

// newRouter wires the service layer and handlers onto the HTTP router.
func newRouter(cfg *config.Config, st store.Store, ca cache.Cache, ac analytics.Client) http.Handler {
	svc := actions.NewService(st, ca, ac, cfg.Cache.ActionListTTL)

	var ready handler.ReadyChecker
	if ac != nil {
		ready = ac
	}

	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(st, cfg.Auth.AdminCode),
		RateLimit: mw.NewRateLimit(ca, cfg.RateLimit.RequestsPerMinute),

		HealthHandler:     handler.NewHealthHandler(st, ca, ready),
		GenerateHandler:   handler.NewGenerateHandler(svc),
		ListHandler:       handler.NewListHandler(svc),
		UpdateHandler:     handler.NewUpdateHandler(svc),
		UpsertClient:      handler.NewUpsertClientHandler(st),
		CreateCodeHandler: handler.NewCreateCodeHandler(st),
	})
}
