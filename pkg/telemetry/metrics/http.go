package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"resumetailor-hq/tailor/pkg/config"
)

// HTTPMetrics tracks API request handling.
//
// Metrics:
//   - tailor_http_requests_total: Request count by route and status code
//   - tailor_http_request_duration_seconds: Handler latency by route
//   - tailor_http_requests_in_flight: Requests currently being served
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewHTTPMetrics creates and registers HTTP metrics with the provided registry.
func NewHTTPMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of API requests by route and status code",
			},
			[]string{"route", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"route"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of API requests currently being served",
			},
		),
	}

	registry.MustRegister(hm.requestsTotal, hm.requestDuration, hm.inFlight)
	return hm
}

// Record records a completed request.
func (hm *HTTPMetrics) Record(route, code string, duration time.Duration) {
	hm.requestsTotal.WithLabelValues(route, code).Inc()
	hm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
