package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks config store metrics.
//
// Metrics:
//   - minos_store_mutations_total: mutations by operation and version
//   - minos_store_backups_total: backups written by version
//   - minos_store_mutation_duration_seconds: mutation duration by operation
type StoreMetrics struct {
	mutationsTotal   *prometheus.CounterVec
	backupsTotal     *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
}

// NewStoreMetrics creates and registers store metrics with the registry.
func NewStoreMetrics(namespace string, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		mutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "mutations_total",
				Help:      "Total number of config store mutations",
			},
			[]string{"operation", "version"},
		),

		backupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "backups_total",
				Help:      "Total number of backups written before overwrites",
			},
			[]string{"version"},
		),

		mutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "mutation_duration_seconds",
				Help:      "Duration of config store mutations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(sm.mutationsTotal, sm.backupsTotal, sm.mutationDuration)
	return sm
}

// ObserveMutation records one completed store mutation.
func (sm *StoreMetrics) ObserveMutation(operation, version string, d time.Duration) {
	sm.mutationsTotal.WithLabelValues(operation, version).Inc()
	sm.mutationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveBackup records one backup written for a version.
func (sm *StoreMetrics) ObserveBackup(version string) {
	sm.backupsTotal.WithLabelValues(version).Inc()
}
