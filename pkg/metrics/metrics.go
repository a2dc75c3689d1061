// Package metrics provides Prometheus metrics for bwscache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bws"

// Metrics holds all Prometheus metrics for bwscache.
//
// A nil *Metrics is valid and records nothing, so library code can accept
// one optionally.
type Metrics struct {
	registry *prometheus.Registry

	// Invocation metrics for the external CLI
	Invocations *InvocationMetrics

	// Cache metrics for the secrets manager
	Cache *CacheMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return &Metrics{
		registry:    registry,
		Invocations: newInvocationMetrics(registry),
		Cache:       newCacheMetrics(registry),
	}
}

// WriteTextfile writes the current metric values in the text exposition
// format to path, for pickup by a node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// ObserveInvocation records one external CLI call.
func (m *Metrics) ObserveInvocation(command, status string, d time.Duration) {
	if m == nil || m.Invocations == nil {
		return
	}
	m.Invocations.Record(command, status, d.Seconds())
}

// ObserveCacheOp records one cache operation and its result.
func (m *Metrics) ObserveCacheOp(op, result string) {
	if m == nil || m.Cache == nil {
		return
	}
	m.Cache.RecordOperation(op, result)
}

// SetCacheEntries sets the number of cached secrets for a project.
func (m *Metrics) SetCacheEntries(project string, n int) {
	if m == nil || m.Cache == nil {
		return
	}
	m.Cache.SetEntries(project, float64(n))
}
