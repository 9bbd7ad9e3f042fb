package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks rule evaluation metrics.
//
// Metrics:
//   - minos_engine_evaluations_total: evaluations by decision and rule id
//   - minos_engine_evaluation_duration_seconds: single-record evaluation duration
//   - minos_engine_batch_size: distribution of batch sizes
type EngineMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	batchSize          prometheus.Histogram
}

// NewEngineMetrics creates and registers engine metrics with the registry.
func NewEngineMetrics(namespace string, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "evaluations_total",
				Help:      "Total number of record evaluations",
			},
			[]string{"decision", "rule_id"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of single-record evaluation in seconds",
				// Evaluations are in-memory scans and should be fast (< 1ms)
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 12), // 1µs to 2ms
			},
		),

		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "batch_size",
				Help:      "Number of records per batch evaluation",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1 to 16384
			},
		),
	}

	registry.MustRegister(em.evaluationsTotal, em.evaluationDuration, em.batchSize)
	return em
}

// ObserveEvaluation records one completed record evaluation.
func (em *EngineMetrics) ObserveEvaluation(decision, ruleID string, d time.Duration) {
	em.evaluationsTotal.WithLabelValues(decision, ruleID).Inc()
	em.evaluationDuration.Observe(d.Seconds())
}

// ObserveBatch records the size of a completed batch evaluation.
func (em *EngineMetrics) ObserveBatch(n int) {
	em.batchSize.Observe(float64(n))
}
