package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initMemoryMetrics() {
	m.refines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_refines_total",
			Help:      "Month refinements by outcome",
		},
		[]string{"outcome"},
	)
	m.imports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_imports_total",
			Help:      "Fragment imports by outcome",
		},
		[]string{"outcome"},
	)
	m.importFragments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_imported_fragments_total",
			Help:      "Fragments created by imports",
		},
	)
	m.registry.MustRegister(m.refines, m.imports, m.importFragments)
}

// ObserveRefine records a refinement outcome.
func (m *Manager) ObserveRefine(outcome string) {
	if !m.enabled {
		return
	}
	m.refines.WithLabelValues(outcome).Inc()
}

// ObserveImport records an import outcome and the fragments it produced.
func (m *Manager) ObserveImport(outcome string, fragments int) {
	if !m.enabled {
		return
	}
	m.imports.WithLabelValues(outcome).Inc()
	m.importFragments.Add(float64(fragments))
}
