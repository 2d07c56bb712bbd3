package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"resumetailor-hq/tailor/pkg/config"
)

func testConfig() *config.MetricsConfig {
	enabled := true
	return &config.MetricsConfig{
		Enabled:                &enabled,
		Namespace:              "test",
		RequestDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestCollector_RecordQuotaCheck(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordQuotaCheck("guest", "bedrock_requests", "allowed", time.Millisecond)
	c.RecordQuotaCheck("guest", "bedrock_requests", "allowed", time.Millisecond)
	c.RecordQuotaCheck("guest", "bedrock_requests", "denied", time.Millisecond)

	allowed := testutil.ToFloat64(c.quotaMetrics.checksTotal.WithLabelValues("guest", "bedrock_requests", "allowed"))
	if allowed != 2 {
		t.Errorf("allowed checks = %v, want 2", allowed)
	}
	denied := testutil.ToFloat64(c.quotaMetrics.checksTotal.WithLabelValues("guest", "bedrock_requests", "denied"))
	if denied != 1 {
		t.Errorf("denied checks = %v, want 1", denied)
	}
}

func TestCollector_RecordStoreOperation(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordStoreOperation("sqlite", "increment", "ok", 200*time.Microsecond)
	c.RecordStoreOperation("sqlite", "increment", "error", time.Millisecond)

	if got := testutil.ToFloat64(c.quotaMetrics.storeOps.WithLabelValues("sqlite", "increment", "error")); got != 1 {
		t.Errorf("store errors = %v, want 1", got)
	}
}

func TestCollector_RecordSweep(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.RecordSweep(3)
	c.RecordSweep(0)
	if got := testutil.ToFloat64(c.quotaMetrics.swept); got != 3 {
		t.Errorf("swept = %v, want 3", got)
	}
}

func TestCollector_RecordUpstream(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordUpstreamCall("bedrock", "complete", "success", 2*time.Second)
	c.RecordTokens("bedrock", "haiku", 120, 45)

	if got := testutil.ToFloat64(c.upstreamMetrics.callsTotal.WithLabelValues("bedrock", "complete", "success")); got != 1 {
		t.Errorf("upstream calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.upstreamMetrics.tokensTotal.WithLabelValues("bedrock", "haiku", "output")); got != 45 {
		t.Errorf("output tokens = %v, want 45", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	disabled := false
	cfg.Enabled = &disabled
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.RecordHTTPRequest("POST /score", 200, time.Second)
	c.RecordQuotaCheck("user", "textract_requests", "allowed", time.Millisecond)

	if got := testutil.CollectAndCount(c.httpMetrics.requestsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d http series", got)
	}
	if got := testutil.CollectAndCount(c.quotaMetrics.checksTotal); got != 0 {
		t.Errorf("disabled collector recorded %d quota series", got)
	}
}

func TestCollector_RouteCardinality(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.routes = newRouteSet(2)

	c.RecordHTTPRequest("GET /health", 200, time.Millisecond)
	c.RecordHTTPRequest("POST /score", 200, time.Millisecond)
	c.RecordHTTPRequest("GET /random-1", 404, time.Millisecond)
	c.RecordHTTPRequest("GET /random-2", 404, time.Millisecond)

	if got := testutil.ToFloat64(c.httpMetrics.requestsTotal.WithLabelValues("other", "404")); got != 2 {
		t.Errorf("overflow routes = %v, want 2 aggregated under other", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	c.RecordQuotaCheck("user", "bedrock_requests", "allowed", time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "test_quota_checks_total") {
		t.Error("quota counter missing from exposition")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("runtime collector missing from default registry")
	}
}

func TestRouteSet(t *testing.T) {
	rs := newRouteSet(2)
	if !rs.Allow("GET /usage") || !rs.Allow("POST /score") {
		t.Fatal("first two routes should be allowed")
	}
	if rs.Allow("GET /master") {
		t.Error("third route should be folded")
	}
	if !rs.Allow("GET /usage") {
		t.Error("known route should still be allowed")
	}
}
