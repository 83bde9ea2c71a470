package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	rendersTotal      *prometheus.CounterVec
	renderDuration    *prometheus.HistogramVec
	activeRenders     prometheus.Gauge
	outputBytesTotal  prometheus.Counter
	outputPixelsTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		rendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoomtile_worker_renders_total",
			Help: "Total render tasks by output format and final status.",
		}, []string{"format", "status"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zoomtile_worker_render_duration_seconds",
			Help:    "Total processing duration for each render task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format", "status"}),
		activeRenders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zoomtile_worker_active_renders",
			Help: "Current number of renders decoding or encoding in the worker.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoomtile_usage_output_bytes_total",
			Help: "Total encoded bytes emitted across all successful renders.",
		}),
		outputPixelsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoomtile_usage_output_pixels_total",
			Help: "Total output pixels emitted across all successful renders.",
		}),
	}

	registry.MustRegister(
		m.rendersTotal,
		m.renderDuration,
		m.activeRenders,
		m.outputBytesTotal,
		m.outputPixelsTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
