package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"resumetailor-hq/tailor/pkg/config"
)

// Collector owns every Prometheus metric the service exports. It satisfies
// the recorder interfaces of the quota limiter, the quota store decorator
// and the upstream client wrappers, so those packages never import
// Prometheus directly.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	httpMetrics     *HTTPMetrics
	quotaMetrics    *QuotaMetrics
	upstreamMetrics *UpstreamMetrics

	// Route labels come from the mux pattern, but unmatched paths fall
	// back to the raw path and must be bounded.
	routes *routeSet
}

const maxRoutes = 200

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created
// with the Go runtime and process collectors attached.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNS
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		routes:   newRouteSet(maxRoutes),
	}

	c.httpMetrics = NewHTTPMetrics(cfg, registry)
	c.quotaMetrics = NewQuotaMetrics(cfg, registry)
	c.upstreamMetrics = NewUpstreamMetrics(cfg, registry)

	return c
}

// RecordHTTPRequest records a completed HTTP request.
//
// Parameters:
//   - route: Route pattern (e.g., "POST /score")
//   - status: Response status code
//   - duration: Time spent in the handler chain
func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	if !c.config.IsEnabled() {
		return
	}

	if !c.routes.Allow(route) {
		route = "other"
	}
	c.httpMetrics.Record(route, strconv.Itoa(status), duration)
}

// RecordQuotaCheck records one CheckAndConsume decision.
//
// Parameters:
//   - tier: "guest" or "user"
//   - service: Counter name (e.g., "bedrock_requests")
//   - result: "allowed", "denied", "store_error" or "config_error"
//   - duration: Time spent deciding
func (c *Collector) RecordQuotaCheck(tier, service, result string, duration time.Duration) {
	if !c.config.IsEnabled() {
		return
	}

	c.quotaMetrics.RecordCheck(tier, service, result, duration)
}

// RecordStoreOperation records one call into the quota store.
func (c *Collector) RecordStoreOperation(backend, op, result string, duration time.Duration) {
	if !c.config.IsEnabled() {
		return
	}

	c.quotaMetrics.RecordStoreOperation(backend, op, result, duration)
}

// RecordSweep records the number of expired records removed by one sweep.
func (c *Collector) RecordSweep(removed int) {
	if !c.config.IsEnabled() {
		return
	}

	c.quotaMetrics.RecordSweep(removed)
}

// RecordUpstreamCall records a call to an external AI service.
//
// Parameters:
//   - service: "bedrock", "gemini", "textract" or "pdf"
//   - operation: Call name (e.g., "complete", "analyze")
//   - result: "success" or "error"
//   - duration: Call latency
func (c *Collector) RecordUpstreamCall(service, operation, result string, duration time.Duration) {
	if !c.config.IsEnabled() {
		return
	}

	c.upstreamMetrics.RecordCall(service, operation, result, duration)
}

// RecordTokens records model token usage.
func (c *Collector) RecordTokens(service, model string, input, output int) {
	if !c.config.IsEnabled() {
		return
	}

	c.upstreamMetrics.RecordTokens(service, model, input, output)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// routeSet admits at most max distinct route labels. Later routes are
// folded into "other".
type routeSet struct {
	mu     sync.Mutex
	max    int
	routes map[string]struct{}
}

func newRouteSet(max int) *routeSet {
	return &routeSet{max: max, routes: make(map[string]struct{})}
}

func (s *routeSet) Allow(route string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[route]; ok {
		return true
	}
	if len(s.routes) >= s.max {
		return false
	}
	s.routes[route] = struct{}{}
	return true
}
