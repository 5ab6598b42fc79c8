package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixellab/internal/domain"
	"github.com/dunamismax/pixellab/internal/id"
	"github.com/dunamismax/pixellab/internal/pipeline"
	"github.com/dunamismax/pixellab/internal/storage"
	"github.com/hibiken/asynq"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderCatalogVersion = "X-Catalog-Version"
	HeaderRequestID      = "X-Request-Id"

	uploadField         = "image"
	multipartOverhead   = 1 << 20
	usageEnqueueTimeout = 2 * time.Second
)

type imageProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	CatalogVersion() int
}

type usageEnqueuer interface {
	EnqueueUsage(ctx context.Context, usage domain.UsageLog) (*asynq.TaskInfo, error)
}

// ReadinessCheck is a named dependency probe served by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Options struct {
	Uploads        imageProcessor
	Objects        imageProcessor
	Usage          usageEnqueuer
	Checks         []ReadinessCheck
	MaxUploadBytes int64
	CORSOrigins    []string
}

type Server struct {
	logger         *log.Logger
	uploads        imageProcessor
	objects        imageProcessor
	usage          usageEnqueuer
	checks         []ReadinessCheck
	maxUploadBytes int64
	cors           *cors.Cors
	metrics        *metrics
	tracer         trace.Tracer
	mux            *http.ServeMux
}

func NewServer(logger *log.Logger, opts Options) (*Server, error) {
	if opts.Uploads == nil {
		return nil, errors.New("upload processor is required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		logger:         logger,
		uploads:        opts.Uploads,
		objects:        opts.Objects,
		usage:          opts.Usage,
		checks:         opts.Checks,
		maxUploadBytes: opts.MaxUploadBytes,
		cors: cors.New(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{HeaderCatalogVersion, HeaderRequestID},
			AllowCredentials: true,
		}),
		metrics: newMetrics(),
		tracer:  otel.Tracer("pixellab/api"),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.metrics.withHTTPMetrics(s.withTracing(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /process_image", s.handleProcessImage)
	s.mux.HandleFunc("POST /process_image/{$}", s.handleProcessImage)
	s.mux.HandleFunc("POST /v1/objects/process", s.handleProcessObject)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			s.logger.Printf("readiness check failed check=%s err=%v", c.Name, err)
			checks[c.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	w.Header().Set(HeaderRequestID, requestID)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	defer file.Close()

	if !isImageContentType(header) {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "Uploaded file is not an image"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("image exceeds %d bytes", s.maxUploadBytes),
		})
		return
	}

	s.process(w, r, s.uploads, pipeline.Request{
		RequestID:  requestID,
		SourceType: domain.SourceTypeUpload,
		Data:       data,
	})
}

func (s *Server) handleProcessObject(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	w.Header().Set(HeaderRequestID, requestID)

	if s.objects == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "object storage is not configured"})
		return
	}

	var req domain.ProcessObjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.process(w, r, s.objects, pipeline.Request{
		RequestID:  requestID,
		SourceType: domain.SourceTypeObjectStore,
		ObjectKey:  strings.TrimSpace(req.ObjectKey),
	})
}

func (s *Server) process(w http.ResponseWriter, r *http.Request, p imageProcessor, req pipeline.Request) {
	result, err := p.Process(r.Context(), req)
	if err != nil {
		s.metrics.imagesProcessed.WithLabelValues(req.SourceType, "failed").Inc()
		s.writeProcessError(w, req, err)
		return
	}

	s.metrics.imagesProcessed.WithLabelValues(req.SourceType, "succeeded").Inc()
	s.metrics.observeOutputs(result.Outputs)
	s.enqueueUsage(r.Context(), result)

	w.Header().Set(HeaderCatalogVersion, strconv.Itoa(result.CatalogVersion))
	writeJSON(w, http.StatusOK, result.Payload)
}

func (s *Server) writeProcessError(w http.ResponseWriter, req pipeline.Request, err error) {
	var (
		decodeErr    *pipeline.DecodeError
		transformErr *pipeline.TransformError
	)
	switch {
	case errors.As(err, &decodeErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": decodeErr.Error()})
	case errors.Is(err, storage.ErrObjectNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "source object not found"})
	case errors.Is(err, storage.ErrObjectTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "source object is too large"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Printf("request aborted request_id=%s err=%v", req.RequestID, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
	case errors.As(err, &transformErr):
		s.logger.Printf("transform failed request_id=%s transform=%s err=%v", req.RequestID, transformErr.Name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "image processing failed"})
	default:
		s.logger.Printf("process failed request_id=%s source_type=%s err=%v", req.RequestID, req.SourceType, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "image processing failed"})
	}
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("image exceeds %d bytes", s.maxUploadBytes),
		})
	case errors.Is(err, http.ErrMissingFile):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "multipart field \"image\" is required"})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart upload"})
	}
}

// enqueueUsage publishes accounting for a served request. Failures are
// logged and never change the response.
func (s *Server) enqueueUsage(ctx context.Context, result pipeline.Result) {
	if s.usage == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageEnqueueTimeout)
	defer cancel()

	if _, err := s.usage.EnqueueUsage(ctx, result.UsageLog()); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			s.metrics.usageEnqueued.WithLabelValues("duplicate").Inc()
			return
		}
		s.metrics.usageEnqueued.WithLabelValues("failed").Inc()
		s.logger.Printf("usage enqueue failed request_id=%s err=%v", result.RequestID, err)
		return
	}
	s.metrics.usageEnqueued.WithLabelValues("enqueued").Inc()
}

func isImageContentType(header *multipart.FileHeader) bool {
	return strings.HasPrefix(header.Header.Get("Content-Type"), "image")
}

func requestIDFrom(r *http.Request) string {
	if candidate := strings.TrimSpace(r.Header.Get(HeaderRequestID)); id.Valid(candidate) {
		return candidate
	}
	return id.New()
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
