package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/pixellab/internal/config"
	"github.com/dunamismax/pixellab/internal/domain"
	"github.com/dunamismax/pixellab/internal/queue"
	"github.com/dunamismax/pixellab/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	statusRecorded = "recorded"
	statusFailed   = "failed"
)

// Server consumes usage records published by the API and writes them to the
// usage store.
type Server struct {
	logger     *log.Logger
	server     *asynq.Server
	usageStore store.UsageStore
	metrics    *metrics
	tracer     trace.Tracer
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	usageStore store.UsageStore,
) (*Server, error) {
	if usageStore == nil {
		return nil, errors.New("usage store is required")
	}
	if !queueCfg.Enabled() {
		return nil, errors.New("queue redis address is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		usageStore: usageStore,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("pixellab/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	return s.server.Run(s.mux())
}


func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeRecordUsage, s.handleRecordUsage)
	return mux
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleRecordUsage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()

	usage, err := queue.ParseRecordUsagePayload(task)
	if err != nil {
		s.metrics.recordsTotal.WithLabelValues("unknown", statusFailed).Inc()
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.record_usage", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("request.id", usage.RequestID),
		attribute.String("request.source_type", usage.SourceType),
		attribute.Int64("usage.pixels_processed", usage.PixelsProcessed),
	)
	defer span.End()

	outcome := statusFailed
	defer func() {
		s.metrics.recordDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.recordsTotal.WithLabelValues(usage.SourceType, outcome).Inc()
	}()

	if err := s.recordUsage(ctx, usage); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "usage write failed")
		s.logger.Printf("usage log write failed request_id=%s err=%v", usage.RequestID, err)
		return err
	}

	outcome = statusRecorded
	span.SetStatus(codes.Ok, "recorded")
	return nil
}

func (s *Server) recordUsage(ctx context.Context, usage domain.UsageLog) error {
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now().UTC()
	}
	if usage.ComputeTimeMS < 1 {
		usage.ComputeTimeMS = 1
	}

	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		return fmt.Errorf("write usage log: %w", err)
	}

	s.metrics.pixelsProcessedTotal.Add(float64(usage.PixelsProcessed))
	s.metrics.inputBytesTotal.Add(float64(usage.InputBytes))
	s.metrics.outputBytesTotal.Add(float64(usage.OutputBytes))
	s.metrics.computeTimeMSTotal.Add(float64(usage.ComputeTimeMS))
	return nil
}
