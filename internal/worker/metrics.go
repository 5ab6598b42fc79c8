package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	recordsTotal         *prometheus.CounterVec
	recordDuration       *prometheus.HistogramVec
	pixelsProcessedTotal prometheus.Counter
	inputBytesTotal      prometheus.Counter
	outputBytesTotal     prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixellab_worker_usage_records_total",
			Help: "Total usage records handled by source type and outcome.",
		}, []string{"source_type", "status"}),
		recordDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixellab_worker_usage_record_duration_seconds",
			Help:    "Time spent persisting each usage record.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixellab_usage_pixels_processed_total",
			Help: "Total pixels processed across recorded requests.",
		}),
		inputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixellab_usage_input_bytes_total",
			Help: "Total encoded source bytes across recorded requests.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixellab_usage_output_bytes_total",
			Help: "Total JPEG bytes produced across recorded requests.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixellab_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across recorded requests.",
		}),
	}

	registry.MustRegister(
		m.recordsTotal,
		m.recordDuration,
		m.pixelsProcessedTotal,
		m.inputBytesTotal,
		m.outputBytesTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
