package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initCompletionMetrics(cfg Config) {
	m.completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Completion round-trips by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)
	m.completionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Completion round-trip latency in seconds",
			Buckets:   cfg.CompletionBuckets,
		},
		[]string{"purpose"},
	)
	m.registry.MustRegister(m.completions, m.completionLatency)
}

// ObserveCompletion records one completion round-trip.
func (m *Manager) ObserveCompletion(purpose, outcome string, seconds float64) {
	if !m.enabled {
		return
	}
	m.completions.WithLabelValues(purpose, outcome).Inc()
	m.completionLatency.WithLabelValues(purpose).Observe(seconds)
}
