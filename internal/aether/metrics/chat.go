package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initChatMetrics(cfg Config) {
	m.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_cycles_total",
			Help:      "Send cycles by outcome (delivered, failed, rejected)",
		},
		[]string{"outcome"},
	)
	m.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_cycle_duration_seconds",
			Help:      "Wall time of admitted send cycles, pacing included",
			Buckets:   cfg.CycleBuckets,
		},
	)
	m.recalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_recalls_total",
			Help:      "Recall directives by outcome (hit, miss)",
		},
		[]string{"outcome"},
	)
	m.chunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_chunks_delivered_total",
			Help:      "Reply chunks appended to message logs",
		},
	)
	m.registry.MustRegister(m.cycles, m.cycleDuration, m.recalls, m.chunks)
}

// ObserveCycle records a send cycle outcome. Rejected cycles never ran and
// are not timed.
func (m *Manager) ObserveCycle(outcome string, seconds float64) {
	if !m.enabled {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	if outcome != "rejected" {
		m.cycleDuration.Observe(seconds)
	}
}

// ObserveRecall records a recall hit or miss.
func (m *Manager) ObserveRecall(outcome string) {
	if !m.enabled {
		return
	}
	m.recalls.WithLabelValues(outcome).Inc()
}

// ObserveChunk records one delivered chunk.
func (m *Manager) ObserveChunk() {
	if !m.enabled {
		return
	}
	m.chunks.Inc()
}
