package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixellab/internal/api"
	"github.com/dunamismax/pixellab/internal/config"
	"github.com/dunamismax/pixellab/internal/pipeline"
	"github.com/dunamismax/pixellab/internal/queue"
	"github.com/dunamismax/pixellab/internal/storage"
	"github.com/dunamismax/pixellab/internal/telemetry"
)

var version = "dev"

func main() {
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName + "-api",
		ServiceVersion: version,
		Exporter:       cfg.Tracing.Exporter,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		OTLPInsecure:   cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("start image runtime: %v", err)
	}
	defer pipeline.Shutdown()

	pipelineCfg := pipeline.Config{
		Quality:        cfg.Pipeline.JPEGQuality,
		Parallelism:    cfg.Pipeline.Parallelism,
		CatalogVersion: cfg.Pipeline.CatalogVersion,
	}
	uploads, err := pipeline.NewUploadProcessor(pipelineCfg)
	if err != nil {
		logger.Fatalf("initialize upload processor: %v", err)
	}

	opts := api.Options{
		Uploads:        uploads,
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		CORSOrigins:    cfg.API.AllowedOrigins(),
	}

	if cfg.Queue.Enabled() {
		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Printf("queue client close error: %v", err)
			}
		}()
		pinger := queue.NewRedisPinger(cfg.Queue.RedisClientOpt())
		defer pinger.Close()

		opts.Usage = queueClient
		opts.Checks = append(opts.Checks, api.ReadinessCheck{Name: "redis", Check: pinger.Ping})
	}

	if cfg.Storage.Enabled() {
		storageClient, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Fatalf("initialize storage client: %v", err)
		}
		objects, err := pipeline.NewObjectStoreProcessor(pipeline.ObjectStoreFetcher{
			Storage:  storageClient,
			MaxBytes: cfg.API.MaxUploadBytes,
		}, pipelineCfg)
		if err != nil {
			logger.Fatalf("initialize object-store processor: %v", err)
		}

		opts.Objects = objects
		opts.Checks = append(opts.Checks, api.ReadinessCheck{Name: "storage", Check: storageClient.Ping})
	}

	app, err := api.NewServer(logger, opts)
	if err != nil {
		logger.Fatalf("initialize api: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	go func() {
		logger.Printf(
			"listening on %s backend=%s catalog_version=%d usage_reporting=%t object_store=%t",
			cfg.API.Addr,
			pipeline.Backend,
			uploads.CatalogVersion(),
			cfg.Queue.Enabled(),
			cfg.Storage.Enabled(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}
