package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"resumetailor-hq/tailor/pkg/config"
)

// QuotaMetrics tracks quota admission decisions and store health.
//
// Metrics:
//   - tailor_quota_checks_total: Decisions by tier, service and result
//   - tailor_quota_check_duration_seconds: Decision latency
//   - tailor_quota_store_operations_total: Store calls by backend, op and result
//   - tailor_quota_store_operation_duration_seconds: Store call latency
//   - tailor_quota_swept_records_total: Expired records removed by the sweeper
type QuotaMetrics struct {
	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	swept         prometheus.Counter
}

// NewQuotaMetrics creates and registers quota metrics with the provided registry.
func NewQuotaMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *QuotaMetrics {
	// Store round trips are sub-millisecond for sqlite and a few
	// milliseconds for remote backends.
	storeBuckets := []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}

	qm := &QuotaMetrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "quota",
				Name:      "checks_total",
				Help:      "Total number of quota decisions",
			},
			[]string{"tier", "service", "result"},
		),

		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "quota",
				Name:      "check_duration_seconds",
				Help:      "Duration of quota decisions in seconds",
				Buckets:   storeBuckets,
			},
			[]string{"service"},
		),

		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "quota",
				Name:      "store_operations_total",
				Help:      "Total number of quota store operations",
			},
			[]string{"backend", "op", "result"},
		),

		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "quota",
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of quota store operations in seconds",
				Buckets:   storeBuckets,
			},
			[]string{"backend", "op"},
		),

		swept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "quota",
				Name:      "swept_records_total",
				Help:      "Total number of expired quota records removed",
			},
		),
	}

	registry.MustRegister(qm.checksTotal, qm.checkDuration, qm.storeOps, qm.storeDuration, qm.swept)
	return qm
}

// RecordCheck records a quota decision.
func (qm *QuotaMetrics) RecordCheck(tier, service, result string, duration time.Duration) {
	qm.checksTotal.WithLabelValues(tier, service, result).Inc()
	qm.checkDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordStoreOperation records a store call.
func (qm *QuotaMetrics) RecordStoreOperation(backend, op, result string, duration time.Duration) {
	qm.storeOps.WithLabelValues(backend, op, result).Inc()
	qm.storeDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordSweep adds removed to the swept counter.
func (qm *QuotaMetrics) RecordSweep(removed int) {
	if removed > 0 {
		qm.swept.Add(float64(removed))
	}
}
