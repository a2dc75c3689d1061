package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks the in-memory secrets cache.
type CacheMetrics struct {
	Entries    *prometheus.GaugeVec
	Operations *prometheus.CounterVec
}

func newCacheMetrics(registry *prometheus.Registry) *CacheMetrics {
	m := &CacheMetrics{
		Entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Number of secrets currently cached.",
			},
			[]string{"project"},
		),

		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "operations_total",
				Help:      "Total number of cache operations by result.",
			},
			[]string{"op", "result"},
		),
	}

	registry.MustRegister(m.Entries, m.Operations)

	return m
}

// SetEntries sets the cached entry count for a project.
func (m *CacheMetrics) SetEntries(project string, count float64) {
	m.Entries.WithLabelValues(project).Set(count)
}

// RecordOperation counts one cache operation.
func (m *CacheMetrics) RecordOperation(op, result string) {
	m.Operations.WithLabelValues(op, result).Inc()
}
