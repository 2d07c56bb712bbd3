package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestCheckReadiness_AllHealthy(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("quota_store", PingCheck(fakePinger{}))
	c.RegisterCheck("metadata_store", PingCheck(fakePinger{}))
	c.RegisterCheck("metadata_store", PingCheck(fakePinger{}))
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after replacing a probe", c.Len())
	}

	status := c.CheckReadiness(context.Background())
	if status.Status != "ready" {
		t.Fatalf("Status = %q, want ready", status.Status)
	}
	if len(status.Checks) != 2 {
		t.Errorf("Checks = %d, want 2", len(status.Checks))
	}
}

func TestCheckReadiness_NoChecks(t *testing.T) {
	if status := New(0).CheckReadiness(context.Background()); status.Status != "ready" {
		t.Errorf("Status = %q, want ready", status.Status)
	}
}

func TestCheckReadiness_Failure(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("quota_store", PingCheck(fakePinger{err: errors.New("connection refused")}))
	c.RegisterCheck("metadata_store", PingCheck(fakePinger{}))

	status := c.CheckReadiness(context.Background())
	if status.Status != "degraded" {
		t.Fatalf("Status = %q, want degraded", status.Status)
	}
	got := status.Checks["quota_store"]
	if got.Status != "unhealthy" || got.Message != "connection refused" {
		t.Errorf("quota_store = %+v", got)
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	status := c.CheckReadiness(context.Background())
	if status.Checks["slow"].Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v, want timeout", status.Checks["slow"])
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"ready", nil, http.StatusOK},
		{"degraded", errors.New("down"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			c.RegisterCheck("quota_store", PingCheck(fakePinger{err: tt.err}))

			rec := httptest.NewRecorder()
			c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.name {
				t.Errorf("body status = %q, want %q", body.Status, tt.name)
			}
		})
	}
}

func TestLivenessHandler_Head(t *testing.T) {
	rec := httptest.NewRecorder()
	New(0).LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("HEAD response should have no body")
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc", "today").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.3" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
