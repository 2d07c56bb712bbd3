// Package metrics provides Prometheus metrics collection for the tailor service.
//
// # Metrics Categories
//
//   - HTTP: request count, latency and in-flight requests by route
//   - Quota: admission decisions by tier, service and result, plus store
//     operation latency per backend and sweeper removals
//   - Upstream: extraction and model call latency, errors and token usage
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	lim, err := limiter.New(store.NewMetered(st, cfg.Quota.Backend, collector), ceilings,
//		limiter.WithRecorder(collector))
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Identities never appear as label values; the quota metrics are keyed by
// tier only.
package metrics
