package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/app/migrate"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/config"
	httpx "github.com/gerrymoeis/proker-tracker-web-sub000/internal/http"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/logger"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/repository/postgres"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/service/auth"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/service/metrics"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/service/syncjob"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/ws"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New("metrics-api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()

	authSvc := auth.New(repo, log, auth.Config{
		JWTSecret:      cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		SystemTokenTTL: cfg.SystemTokenTTL,
	})
	if err := authSvc.EnsureAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		log.Error("failed to seed admin account", "error", err)
		os.Exit(1)
	}

	buffer := metrics.NewBuffer(cfg.BufferCapacity)
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	collector := metrics.NewCollector(repo, buffer, hub, log, cfg.FetchLimit, retention)

	job := syncjob.New(collector, log)
	if err := job.Start(cfg.SyncInterval, cfg.SyncInitialDelay); err != nil {
		log.Error("failed to start resync job", "error", err)
		os.Exit(1)
	}
	defer job.Stop()

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, collector, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("metrics api starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		// One last chance to push buffered metrics into the sink.
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelDrain()
		if _, err := collector.Drain(drainCtx); err != nil {
			log.Warn("final drain failed", "error", err)
		}
		log.Info("metrics api stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
