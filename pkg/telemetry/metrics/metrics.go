// Package metrics provides Prometheus instrumentation for rule evaluation
// and config store operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace is the metric namespace used when none is configured.
const DefaultNamespace = "minos"

// Metrics bundles all collectors on a private registry so tests can create
// isolated instances without double-registration panics.
type Metrics struct {
	Registry *prometheus.Registry
	Engine   *EngineMetrics
	Store    *StoreMetrics
}

// New creates a metrics bundle with its own registry, including the
// standard Go runtime and process collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		Registry: registry,
		Engine:   NewEngineMetrics(namespace, registry),
		Store:    NewStoreMetrics(namespace, registry),
	}
}

// Handler returns an HTTP handler exposing the registry in the Prometheus
// text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
