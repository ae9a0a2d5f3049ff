// Command server starts the content publisher HTTP API.
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

	httpserver "github.com/fairyhunter13/ai-content-publisher/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-content-publisher/internal/app"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/service/ratelimiter"
)

const cleanupInterval = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.Close()

	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(deps.Pool, cfg.DataRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cleanupInterval)
		slog.Info("cleanup service started", slog.Int("retention_days", cfg.DataRetentionDays))
	}

	// Interfaces stay nil when the optional backends are not configured.
	var queue domain.BatchQueue
	var kafkaPing app.Pinger
	if cfg.QueueEnabled() {
		producer, err := redpanda.NewProducer(cfg.KafkaBrokers, "")
		if err != nil {
			slog.Error("redpanda producer connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer producer.Close()
		queue, kafkaPing = producer, producer
	} else {
		slog.Info("no kafka brokers configured; batches run inline")
	}

	var limiter ratelimiter.Limiter
	if l := ratelimiter.NewRedisLuaLimiter(deps.Redis, ratelimiter.NewBucketConfigFromPerMinute(cfg.RateLimitPerMin)); l != nil {
		limiter = l
	}

	batchSvc := deps.BatchService(cfg, queue)

	sweeper := app.NewStuckBatchSweeper(deps.Batches, queue, cfg.BatchStaleAfter, cfg.BatchSweepInterval)
	go sweeper.Run(ctx)

	srv := &httpserver.Server{
		Generator:   deps.GenerateSvc,
		Publisher:   deps.PublishSvc,
		Batches:     batchSvc,
		Quota:       deps.QuotaSvc,
		Credentials: deps.Credentials,
		Sites:       deps.Sites,
		Checks:      app.BuildReadinessChecks(deps.Pool, app.WrapRedis(deps.Redis), kafkaPing),
	}
	handler := app.BuildRouter(cfg, srv, limiter)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
