// Package main provides the worker application entry point.
// The worker runs queued batches from the Redpanda topic.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-content-publisher/internal/app"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// The worker exposes its own /metrics so batch counters can be scraped.
	observability.InitMetrics()
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	if !cfg.QueueEnabled() {
		slog.Error("KAFKA_BROKERS is required for the worker")
		os.Exit(1)
	}

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer deps.Close()

	// RunBatch never enqueues, so the worker needs no producer of its own.
	batchSvc := deps.BatchService(cfg, nil)

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, batchSvc, cfg.GetRetryConfig())
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		slog.Info("starting redpanda consumer", slog.String("group", cfg.KafkaGroupID))
		if err := consumer.Run(ctx); err != nil {
			slog.Error("worker error", slog.Any("error", err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	case <-done:
	}

	cancel()
	consumer.Close()
	<-done

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	slog.Info("worker stopped")
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}
