// Package metrics provides Prometheus instrumentation for aether. Manager
// implements the Recorder interfaces of the llm, memory and chat packages.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aether"

// Manager owns the metrics registry. A disabled Manager accepts every call
// and records nothing.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	completions       *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	recalls       *prometheus.CounterVec
	chunks        prometheus.Counter

	refines         *prometheus.CounterVec
	imports         *prometheus.CounterVec
	importFragments prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool

	CompletionBuckets []float64
	CycleBuckets      []float64
	HTTPBuckets       []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		CompletionBuckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		CycleBuckets:      []float64{1, 2, 5, 10, 20, 30, 60, 120},
		HTTPBuckets:       []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}
	def := DefaultConfig()
	if len(cfg.CompletionBuckets) == 0 {
		cfg.CompletionBuckets = def.CompletionBuckets
	}
	if len(cfg.CycleBuckets) == 0 {
		cfg.CycleBuckets = def.CycleBuckets
	}
	if len(cfg.HTTPBuckets) == 0 {
		cfg.HTTPBuckets = def.HTTPBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{registry: registry, enabled: true}
	m.initCompletionMetrics(cfg)
	m.initChatMetrics(cfg)
	m.initMemoryMetrics()
	m.initHTTPMetrics(cfg)
	return m
}

// NoOpManager returns a disabled manager.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Registry exposes the underlying registry (nil when disabled).
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
