package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dunamismax/pixellab/internal/config"
	"github.com/dunamismax/pixellab/internal/store"
	"github.com/dunamismax/pixellab/internal/telemetry"
	"github.com/dunamismax/pixellab/internal/worker"
)

var version = "dev"

func main() {
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName + "-worker",
		ServiceVersion: version,
		Exporter:       cfg.Tracing.Exporter,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		OTLPInsecure:   cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	usageStore, closeStore := openUsageStore(logger, cfg.Database)
	defer closeStore()

	totalsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if totals, err := usageStore.Totals(totalsCtx); err != nil {
		logger.Printf("usage totals unavailable err=%v", err)
	} else {
		logger.Printf("usage so far requests=%d pixels_processed=%d compute_time_ms=%d", totals.Requests, totals.PixelsProcessed, totals.ComputeTimeMS)
	}
	cancel()

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, usageStore)
	if err != nil {
		logger.Fatalf("initialize worker: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           metricsMux(srv.MetricsHandler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	logger.Printf(
		"starting worker concurrency=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	// Run blocks until SIGTERM or SIGINT.
	runErr := srv.Run()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Printf("metrics shutdown failed: %v", err)
	}
	if runErr != nil {
		logger.Printf("worker failed: %v", runErr)
	}
}

func openUsageStore(logger *log.Logger, cfg config.DatabaseConfig) (store.UsageLedger, func()) {
	if strings.TrimSpace(cfg.DSN) == "" {
		logger.Printf("database dsn not set, keeping usage logs in memory")
		return store.NewMemoryUsageStore(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := store.NewPostgresUsageStore(ctx, cfg.DSN)
	if err != nil {
		logger.Fatalf("open usage store: %v", err)
	}
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Printf("usage store close error: %v", err)
		}
	}
}

func metricsMux(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
