package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/pixellab/internal/domain"
	"github.com/dunamismax/pixellab/internal/transform"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

type Request struct {
	RequestID  string
	SourceType string
	ObjectKey  string
	Data       []byte
}

type Result struct {
	RequestID      string
	SourceType     string
	Payload        Payload
	Outputs        []Output
	SourceBytes    int
	Width          int
	Height         int
	CatalogVersion int
	Duration       time.Duration
}

// OutputBytes sums the encoded JPEG sizes before base64.
func (r Result) OutputBytes() int64 {
	var total int64
	for _, o := range r.Outputs {
		total += int64(o.Bytes)
	}
	return total
}

// UsageLog builds the accounting record for the processed request.
func (r Result) UsageLog() domain.UsageLog {
	log := domain.NewUsageLog(r.RequestID, r.SourceType, r.Width, r.Height, len(r.Outputs))
	log.InputBytes = int64(r.SourceBytes)
	log.OutputBytes = r.OutputBytes()
	log.ComputeTimeMS = r.Duration.Milliseconds()
	log.CatalogVersion = r.CatalogVersion
	return log
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// UploadFetcher serves bytes that arrived with the request itself.
type UploadFetcher struct{}

func (UploadFetcher) Fetch(_ context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, domain.SourceTypeUpload) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return req.Data, nil
}

type Config struct {
	Quality        int
	Parallelism    int
	CatalogVersion int
}

type Processor struct {
	fetcher Fetcher
	codec   Codec
	runner  *Runner
	version int
	tracer  trace.Tracer
}

func NewUploadProcessor(cfg Config) (*Processor, error) {
	return newProcessor(UploadFetcher{}, newCodec(), cfg)
}

func NewObjectStoreProcessor(fetcher Fetcher, cfg Config) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	return newProcessor(fetcher, newCodec(), cfg)
}

func newProcessor(fetcher Fetcher, codec Codec, cfg Config) (*Processor, error) {
	entries, version, err := catalogFor(cfg.CatalogVersion)
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(entries, codec, RunnerConfig{
		Quality:     cfg.Quality,
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	return &Processor{
		fetcher: fetcher,
		codec:   codec,
		runner:  runner,
		version: version,
		tracer:  otel.Tracer("pixellab/pipeline"),
	}, nil
}

func catalogFor(version int) ([]transform.Entry, int, error) {
	switch version {
	case 0, transform.CatalogVersion:
		return transform.Catalog(), transform.CatalogVersion, nil
	case 1:
		return transform.CatalogV1(), 1, nil
	default:
		return nil, 0, fmt.Errorf("unknown catalog version %d", version)
	}
}

// CatalogVersion reports the catalog version this processor runs.
func (p *Processor) CatalogVersion() int {
	return p.version
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("request.source_type", req.SourceType),
		attribute.Int("catalog.version", p.version),
	))
	defer span.End()

	result, err := p.process(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("image.width", result.Width),
		attribute.Int("image.height", result.Height),
	)
	return result, nil
}

func (p *Processor) process(ctx context.Context, req Request) (Result, error) {
	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	started := time.Now()
	src, err := p.codec.Decode(ctx, sourceBytes)
	if err != nil {
		return Result{}, fmt.Errorf("decode stage: %w", err)
	}

	payload, outputs, err := p.runner.Run(ctx, src)
	if err != nil {
		return Result{}, fmt.Errorf("transform stage: %w", err)
	}

	return Result{
		RequestID:      req.RequestID,
		SourceType:     strings.ToLower(req.SourceType),
		Payload:        payload,
		Outputs:        outputs,
		SourceBytes:    len(sourceBytes),
		Width:          src.Rect.Dx(),
		Height:         src.Rect.Dy(),
		CatalogVersion: p.version,
		Duration:       time.Since(started),
	}, nil
}
