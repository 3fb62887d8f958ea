// Package main is the entrypoint for the Salescope API server.
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

	"github.com/joho/godotenv"
	"github.com/salescope/salescope/internal/api"
	"github.com/salescope/salescope/internal/api/handler"
	mw "github.com/salescope/salescope/internal/api/middleware"
	"github.com/salescope/salescope/internal/api/response"
	"github.com/salescope/salescope/internal/auth"
	"github.com/salescope/salescope/internal/cache"
	"github.com/salescope/salescope/internal/config"
	"github.com/salescope/salescope/internal/datasets"
	"github.com/salescope/salescope/internal/forecast"
	"github.com/salescope/salescope/internal/jobs"
	"github.com/salescope/salescope/internal/objectstore"
	"github.com/salescope/salescope/internal/store"
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
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment")
	}

	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "forecast_timeout", cfg.Forecast.Timeout)

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

	// 5. Connect object store
	objects, err := objectstore.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect object store: %w", err)
	}
	slog.Info("object store connected", "bucket", cfg.Storage.Bucket)

	// 6. Build services
	pgStore := store.NewPostgresStore(pool)
	tokens := auth.NewTokens(cfg.Auth)
	datasetSvc := datasets.NewService(pgStore, objects, redisCache)
	gateway := forecast.NewHTTPClient(cfg.Forecast.BaseURL, cfg.Forecast.Timeout)
	jobSvc := jobs.NewService(pgStore, datasetSvc, gateway, redisCache,
		cfg.Forecast.Timeout, cfg.Jobs.StuckAfter)

	// 7. Reconcile jobs orphaned in running state by a previous process
	if _, err := jobSvc.ReconcileStuck(ctx); err != nil {
		slog.Error("startup reconciliation failed", "error", err)
	}
	go watchdog(ctx, jobSvc, cfg.Jobs.WatchdogInterval)

	// 8. Build router with dependencies
	authMW := mw.NewAuth(tokens, pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      authMW,
		RateLimit: rateLimit,

		HealthHandler:   healthHandler(pgStore, redisCache, objects),
		RegisterHandler: handler.NewRegisterHandler(pgStore, tokens),
		LoginHandler:    handler.NewLoginHandler(pgStore, tokens),

		UploadDataset: handler.NewUploadDatasetHandler(datasetSvc),
		ListDatasets:  handler.NewListDatasetsHandler(datasetSvc),
		GetDataset:    handler.NewGetDatasetHandler(datasetSvc),

		SubmitJob:  handler.NewSubmitJobHandler(jobSvc),
		GetJob:     handler.NewGetJobHandler(jobSvc),
		ListJobs:   handler.NewListJobsHandler(jobSvc),
		JobMetrics: handler.NewJobMetricsHandler(jobSvc),
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

// watchdog periodically fails jobs stuck in running state past the forecast
// timeout window.
func watchdog(ctx context.Context, svc *jobs.Service, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ReconcileStuck(ctx); err != nil {
				slog.Error("watchdog reconciliation failed", "error", err)
			}
		}
	}
}

// healthHandler checks database, cache, and object store connectivity.
func healthHandler(s store.Store, c cache.Cache, o objectstore.ObjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"storage":  "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := o.Ping(r.Context()); err != nil {
			checks["storage"] = "degraded"
		}

		degraded := false
		for _, v := range checks {
			if v != "ok" {
				degraded = true
			}
		}
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
