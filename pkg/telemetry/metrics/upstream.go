package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"resumetailor-hq/tailor/pkg/config"
)

// UpstreamMetrics tracks calls to document extraction and generative model
// services.
//
// Metrics:
//   - tailor_upstream_calls_total: Calls by service, operation and result
//   - tailor_upstream_call_duration_seconds: Call latency
//   - tailor_upstream_tokens_total: Model tokens by direction
type UpstreamMetrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	tokensTotal  *prometheus.CounterVec
}

// NewUpstreamMetrics creates and registers upstream metrics with the provided registry.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "calls_total",
				Help:      "Total number of calls to extraction and model services",
			},
			[]string{"service", "operation", "result"},
		),

		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "call_duration_seconds",
				Help:      "Duration of upstream calls in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"service", "operation"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "tokens_total",
				Help:      "Total number of model tokens consumed",
			},
			[]string{"service", "model", "direction"},
		),
	}

	registry.MustRegister(um.callsTotal, um.callDuration, um.tokensTotal)
	return um
}

// RecordCall records one upstream call.
func (um *UpstreamMetrics) RecordCall(service, operation, result string, duration time.Duration) {
	um.callsTotal.WithLabelValues(service, operation, result).Inc()
	um.callDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordTokens records input and output token counts.
func (um *UpstreamMetrics) RecordTokens(service, model string, input, output int) {
	if input > 0 {
		um.tokensTotal.WithLabelValues(service, model, "input").Add(float64(input))
	}
	if output > 0 {
		um.tokensTotal.WithLabelValues(service, model, "output").Add(float64(output))
	}
}
