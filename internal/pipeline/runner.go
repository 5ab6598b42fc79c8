package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"runtime"
	"strings"
	"time"

	"github.com/dunamismax/pixellab/internal/transform"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Payload maps "<entry name>.jpg" to the base64 JPEG of that entry's output.
type Payload map[string]string

// Output describes one encoded catalog result.
type Output struct {
	Name     string
	Key      string
	Format   string
	Bytes    int
	Width    int
	Height   int
	Duration time.Duration
}

// TransformError names the catalog entry that failed to produce or encode
// its output.
type TransformError struct {
	Name string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Name, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

type RunnerConfig struct {
	Quality     int
	Parallelism int
}

// Runner applies every catalog entry to a source grid.
type Runner struct {
	entries     []transform.Entry
	codec       Codec
	quality     int
	parallelism int
	tracer      trace.Tracer
}

func NewRunner(entries []transform.Entry, codec Codec, cfg RunnerConfig) (*Runner, error) {
	if len(entries) == 0 {
		return nil, errors.New("catalog must contain at least one entry")
	}
	if codec == nil {
		return nil, errors.New("codec is required")
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate catalog entry %q", name)
		}
		seen[name] = struct{}{}
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	return &Runner{
		entries:     entries,
		codec:       codec,
		quality:     normalizeQuality(cfg.Quality),
		parallelism: parallelism,
		tracer:      otel.Tracer("pixellab/pipeline"),
	}, nil
}

// Len reports the number of entries each Run produces.
func (r *Runner) Len() int {
	return len(r.entries)
}

// Run produces the full payload or an error; it never returns a partial
// payload. src is shared by all entries and is not modified.
func (r *Runner) Run(ctx context.Context, src *image.Gray) (Payload, []Output, error) {
	if src == nil {
		return nil, nil, errors.New("source image is required")
	}

	outputs := make([]Output, len(r.entries))
	encoded := make([]string, len(r.entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, entry := range r.entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, data, err := r.runEntry(gctx, entry, src)
			if err != nil {
				return err
			}
			outputs[i] = out
			encoded[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	payload := make(Payload, len(r.entries))
	for i, out := range outputs {
		payload[out.Key] = encoded[i]
	}
	return payload, outputs, nil
}

func (r *Runner) runEntry(ctx context.Context, entry transform.Entry, src *image.Gray) (out Output, data string, err error) {
	if err := ctx.Err(); err != nil {
		return Output{}, "", err
	}

	_, span := r.tracer.Start(ctx, "transform.apply", trace.WithAttributes(
		attribute.String("transform.name", entry.Name),
		attribute.Int("image.width", src.Rect.Dx()),
		attribute.Int("image.height", src.Rect.Dy()),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err = &TransformError{Name: entry.Name, Err: fmt.Errorf("panic: %v", rec)}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	started := time.Now()
	result, err := entry.Apply(src)
	if err != nil {
		return Output{}, "", &TransformError{Name: entry.Name, Err: err}
	}

	jpg, err := r.codec.Encode(result, r.quality)
	if err != nil {
		return Output{}, "", &TransformError{Name: entry.Name, Err: err}
	}

	out = Output{
		Name:     entry.Name,
		Key:      entry.Name + OutputExtension,
		Format:   OutputFormat,
		Bytes:    len(jpg),
		Width:    result.Rect.Dx(),
		Height:   result.Rect.Dy(),
		Duration: time.Since(started),
	}
	span.SetAttributes(attribute.Int("output.bytes", out.Bytes))
	return out, base64.StdEncoding.EncodeToString(jpg), nil
}
