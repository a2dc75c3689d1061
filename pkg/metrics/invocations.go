package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InvocationMetrics tracks calls to the external bws executable.
type InvocationMetrics struct {
	Duration *prometheus.HistogramVec
	Total    *prometheus.CounterVec
}

func newInvocationMetrics(registry *prometheus.Registry) *InvocationMetrics {
	m := &InvocationMetrics{
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Wall time of external bws invocations in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"command"},
		),

		Total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of external bws invocations.",
			},
			[]string{"command", "status"},
		),
	}

	registry.MustRegister(m.Duration, m.Total)

	return m
}

// Record records a finished invocation.
func (m *InvocationMetrics) Record(command, status string, durationSeconds float64) {
	m.Duration.WithLabelValues(command).Observe(durationSeconds)
	m.Total.WithLabelValues(command, status).Inc()
}
