package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/dunamismax/pixellab/internal/domain"
	"github.com/dunamismax/pixellab/internal/pipeline"
	"github.com/dunamismax/pixellab/internal/storage"
	"github.com/hibiken/asynq"
)

func TestProcessImageReturnsEveryVariant(t *testing.T) {
	usage := &captureEnqueuer{}
	srv := newTestServer(t, Options{Usage: usage})

	req := multipartRequest(t, "/process_image/", "image", "cat.png", "image/png", testPNG(t, 24, 16))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(HeaderCatalogVersion); got != "2" {
		t.Fatalf("expected catalog version header 2, got %q", got)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Fatal("expected request id header")
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload) != 18 {
		t.Fatalf("expected 18 keys, got %d", len(payload))
	}
	if _, ok := payload["linear_contrasted_image.jpg"]; !ok {
		t.Fatal("expected linear_contrasted_image.jpg in response")
	}

	logs := usage.logs()
	if len(logs) != 1 {
		t.Fatalf("expected one usage record, got %d", len(logs))
	}
	if logs[0].PixelsProcessed != 24*16*18 || logs[0].SourceType != domain.SourceTypeUpload {
		t.Fatalf("unexpected usage record: %+v", logs[0])
	}
	if logs[0].RequestID != rec.Header().Get(HeaderRequestID) {
		t.Fatalf("expected usage request id %s, got %s", rec.Header().Get(HeaderRequestID), logs[0].RequestID)
	}
}

func TestProcessImageWithoutSlash(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := multipartRequest(t, "/process_image", "image", "cat.png", "image/png", testPNG(t, 4, 4))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProcessImageRejectsNonImage(t *testing.T) {
	proc := &countingProcessor{}
	srv, err := NewServer(log.New(io.Discard, "", 0), Options{Uploads: proc})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	req := multipartRequest(t, "/process_image/", "image", "notes.txt", "text/plain", []byte("hello"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"Uploaded file is not an image"}` {
		t.Fatalf("unexpected body: %s", body)
	}
	if proc.calls != 0 {
		t.Fatalf("expected processor not to run, got %d calls", proc.calls)
	}
}

func TestProcessImageUndecodable(t *testing.T) {
	usage := &captureEnqueuer{}
	srv := newTestServer(t, Options{Usage: usage})

	req := multipartRequest(t, "/process_image/", "image", "broken.png", "image/png", []byte("not really a png"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if len(usage.logs()) != 0 {
		t.Fatal("expected no usage record for failed request")
	}
}

func TestProcessImageEmptyFile(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := multipartRequest(t, "/process_image/", "image", "empty.png", "image/png", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestProcessImageTooLarge(t *testing.T) {
	srv := newTestServer(t, Options{MaxUploadBytes: 64})

	req := multipartRequest(t, "/process_image/", "image", "big.png", "image/png", bytes.Repeat([]byte{1}, 128))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestProcessImageMissingField(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := multipartRequest(t, "/process_image/", "file", "cat.png", "image/png", testPNG(t, 2, 2))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestProcessImageTransformFailure(t *testing.T) {
	proc := &countingProcessor{err: fmt.Errorf("transform stage: %w", &pipeline.TransformError{Name: "eroded_image", Err: errors.New("boom")})}
	srv, err := NewServer(log.New(io.Discard, "", 0), Options{Uploads: proc})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	req := multipartRequest(t, "/process_image/", "image", "cat.png", "image/png", testPNG(t, 2, 2))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "image processing failed") {
		t.Fatalf("expected generic failure message, got %s", rec.Body.String())
	}
}

func TestProcessObject(t *testing.T) {
	objects := &countingProcessor{result: pipeline.Result{
		RequestID:      "ignored",
		Payload:        pipeline.Payload{"smoothed_image.jpg": "AAAA"},
		CatalogVersion: 2,
	}}
	srv := newTestServer(t, Options{Objects: objects})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/objects/process", strings.NewReader(`{"object_key":"uploads/cat.png"}`))
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if objects.last.ObjectKey != "uploads/cat.png" || objects.last.SourceType != domain.SourceTypeObjectStore {
		t.Fatalf("unexpected request forwarded: %+v", objects.last)
	}
}

func TestProcessObjectErrors(t *testing.T) {
	disabled := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	disabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/objects/process", strings.NewReader(`{"object_key":"a.png"}`)))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without storage, got %d", rec.Code)
	}

	missing := &countingProcessor{err: fmt.Errorf("fetch stage: %w", storage.ErrObjectNotFound)}
	srv := newTestServer(t, Options{Objects: missing})

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/objects/process", strings.NewReader(`{"object_key":"a.png"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/objects/process", strings.NewReader(`{"object_key":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty key, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/objects/process", strings.NewReader(`{"object_key":"a.png","extra":1}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	healthy := newTestServer(t, Options{Checks: []ReadinessCheck{
		{Name: "redis", Check: func(context.Context) error { return nil }},
	}})

	rec := httptest.NewRecorder()
	healthy.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	healthy.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected readyz 200, got %d", rec.Code)
	}

	unhealthy := newTestServer(t, Options{Checks: []ReadinessCheck{
		{Name: "redis", Check: func(context.Context) error { return nil }},
		{Name: "storage", Check: func(context.Context) error { return errors.New("bucket missing") }},
	}})

	rec = httptest.NewRecorder()
	unhealthy.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readyz 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"storage":"unavailable"`) {
		t.Fatalf("expected failing check in body, got %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	handler := srv.Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pixellab_api_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected healthz request counter in metrics output")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodOptions, "/process_image/", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" && got != "*" {
		t.Fatalf("expected origin to be allowed, got %q", got)
	}
	if rec.Code >= 300 {
		t.Fatalf("expected successful preflight, got %d", rec.Code)
	}
}

func TestRequestIDFromHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/process_image/", nil)
	req.Header.Set(HeaderRequestID, "3f1f6f8e-4bde-4c41-9a53-7f7e4f0f6a10")
	if got := requestIDFrom(req); got != "3f1f6f8e-4bde-4c41-9a53-7f7e4f0f6a10" {
		t.Fatalf("expected client request id to be kept, got %s", got)
	}

	req.Header.Set(HeaderRequestID, "drop table")
	if got := requestIDFrom(req); got == "drop table" {
		t.Fatal("expected invalid request id to be replaced")
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/process_image/":     "/process_image/",
		"/process_image":      "/process_image/",
		"/v1/objects/process": "/v1/objects/process",
		"/readyz":             "/readyz",
		"/random/path":        "other",
	}
	for path, want := range cases {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q): expected %s, got %s", path, want, got)
		}
	}
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()

	if opts.Uploads == nil {
		uploads, err := pipeline.NewUploadProcessor(pipeline.Config{Parallelism: 2})
		if err != nil {
			t.Fatalf("new upload processor: %v", err)
		}
		opts.Uploads = uploads
	}
	srv, err := NewServer(log.New(io.Discard, "", 0), opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func multipartRequest(t *testing.T, target, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type countingProcessor struct {
	calls  int
	last   pipeline.Request
	result pipeline.Result
	err    error
}

func (p *countingProcessor) Process(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	p.calls++
	p.last = req
	if p.err != nil {
		return pipeline.Result{}, p.err
	}
	return p.result, nil
}

func (p *countingProcessor) CatalogVersion() int {
	return 2
}

type captureEnqueuer struct {
	mu     sync.Mutex
	usages []domain.UsageLog
}

func (c *captureEnqueuer) EnqueueUsage(_ context.Context, usage domain.UsageLog) (*asynq.TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usages = append(c.usages, usage)
	return &asynq.TaskInfo{ID: usage.RequestID}, nil
}

func (c *captureEnqueuer) logs() []domain.UsageLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.UsageLog(nil), c.usages...)
}
