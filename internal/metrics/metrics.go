package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the prometheus collectors of the service.
type Metrics struct {
	registry *prometheus.Registry

	IntentsClassified *prometheus.CounterVec
	ToolCalls         *prometheus.CounterVec
	ToolDuration      *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IntentsClassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcplab_intents_classified_total",
				Help: "Intents detected in chat prompts",
			},
			[]string{"intent"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcplab_tool_calls_total",
				Help: "Tool executions by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcplab_tool_duration_seconds",
				Help:    "Tool execution latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcplab_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
	}

	m.registry.MustRegister(
		m.IntentsClassified,
		m.ToolCalls,
		m.ToolDuration,
		m.HTTPRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveIntents counts each detected intent once.
func (m *Metrics) ObserveIntents(intents []string) {
	for _, in := range intents {
		m.IntentsClassified.WithLabelValues(in).Inc()
	}
}

// ObserveTool records one tool execution.
func (m *Metrics) ObserveTool(tool, outcome string, elapsed time.Duration) {
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
