// Package main is the entrypoint for the Brewy API server.
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

	"github.com/code-brew-house/brewy-backend/internal/api"
	"github.com/code-brew-house/brewy-backend/internal/api/handler"
	mw "github.com/code-brew-house/brewy-backend/internal/api/middleware"
	"github.com/code-brew-house/brewy-backend/internal/api/response"
	"github.com/code-brew-house/brewy-backend/internal/cache"
	"github.com/code-brew-house/brewy-backend/internal/config"
	"github.com/code-brew-house/brewy-backend/internal/jobs"
	"github.com/code-brew-house/brewy-backend/internal/storage"
	"github.com/code-brew-house/brewy-backend/internal/store"
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
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "webhook_url", cfg.Webhook.URL)

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

	// 5. Create blob store
	objects, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}
	if err := objects.Ping(ctx); err != nil {
		return fmt.Errorf("check object store: %w", err)
	}
	slog.Info("object store connected", "bucket", cfg.Storage.Bucket)

	// 6. Create store and job lifecycle core
	pgStore := store.NewPostgresStore(pool)

	guard := jobs.NewLimitGuard(pgStore, cfg.Jobs.DefaultMaxConcurrent)
	dispatcher := jobs.NewHTTPDispatcher(cfg.Webhook)
	jobService := jobs.NewService(pgStore, redisCache, objects, guard, dispatcher)
	reconciler := jobs.NewReconciler(pgStore, redisCache)

	// 7. Optional stale-job reaper
	if cfg.Jobs.StaleTimeout > 0 {
		reaper := jobs.NewReaper(pgStore, redisCache, cfg.Jobs.StaleTimeout, cfg.Jobs.ReaperInterval)
		go reaper.Run(ctx)
	}

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:         mw.NewAuth(pgStore),
		RateLimit:    mw.NewRateLimit(redisCache, 60),
		CallbackAuth: mw.NewCallbackAuth(cfg.Webhook.Secret),

		HealthHandler:    healthHandler(pgStore, redisCache),
		UploadHandler:    handler.NewUploadHandler(jobService, cfg.Storage.MaxUploadBytes),
		JobStatusHandler: handler.NewJobStatusHandler(jobService),
		JobResultHandler: handler.NewJobResultHandler(jobService),
		FileURLHandler:   handler.NewFileURLHandler(jobService, cfg.Storage.PresignExpiry),
		CallbackHandler:  handler.NewCallbackHandler(reconciler),
		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
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

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
