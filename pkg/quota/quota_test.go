package quota

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPeriodKey(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		svc  Service
		want string
	}{
		{
			name: "utc morning",
			at:   time.Date(2024, 3, 9, 8, 30, 0, 0, time.UTC),
			svc:  ServiceTextract,
			want: "2024-03-09#textract_requests",
		},
		{
			name: "last second of day",
			at:   time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC),
			svc:  ServiceBedrock,
			want: "2024-03-09#bedrock_requests",
		},
		{
			name: "non-utc zone is converted",
			at:   time.Date(2024, 3, 9, 20, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			svc:  ServiceBedrock,
			want: "2024-03-10#bedrock_requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodKey(tt.at, tt.svc); got != tt.want {
				t.Errorf("PeriodKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextReset(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := NextReset(at); !got.Equal(want) {
		t.Errorf("NextReset() = %v, want %v", got, want)
	}

	midnight := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := NextReset(midnight); !got.Equal(midnight.AddDate(0, 0, 1)) {
		t.Errorf("NextReset at midnight = %v", got)
	}
}

func TestRecordTTLOutlivesDay(t *testing.T) {
	if RecordTTL <= 24*time.Hour {
		t.Fatalf("record TTL %v must exceed one day", RecordTTL)
	}
}

func TestCeilings_Lookup(t *testing.T) {
	c := DefaultCeilings()

	tests := []struct {
		tier Tier
		svc  Service
		want int64
	}{
		{TierGuest, ServiceBedrock, 5},
		{TierGuest, ServiceTextract, 10},
		{TierUser, ServiceBedrock, 50},
		{TierUser, ServiceTextract, 100},
	}
	for _, tt := range tests {
		got, err := c.Lookup(tt.tier, tt.svc)
		if err != nil {
			t.Fatalf("Lookup(%s, %s) failed: %v", tt.tier, tt.svc, err)
		}
		if got != tt.want {
			t.Errorf("Lookup(%s, %s) = %d, want %d", tt.tier, tt.svc, got, tt.want)
		}
	}

	_, err := c.Lookup(TierGuest, Service("comprehend_requests"))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Service != "comprehend_requests" {
		t.Errorf("unexpected error detail %v", err)
	}

	if _, err := c.Lookup(Tier("admin"), ServiceBedrock); !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown tier should be a configuration error, got %v", err)
	}
}

func TestCeilings_Validate(t *testing.T) {
	if err := DefaultCeilings().Validate(); err != nil {
		t.Fatalf("default ceilings invalid: %v", err)
	}

	missingTier := DefaultCeilings()
	delete(missingTier, TierUser)
	if err := missingTier.Validate(); err == nil {
		t.Error("expected error for missing tier")
	}

	zero := DefaultCeilings()
	zero[TierGuest][ServiceBedrock] = 0
	if err := zero.Validate(); err == nil {
		t.Error("expected error for zero ceiling")
	}

	inverted := DefaultCeilings()
	inverted[TierUser][ServiceTextract] = 10
	if err := inverted.Validate(); err == nil {
		t.Error("expected error when user ceiling does not exceed guest ceiling")
	}
}

func TestCeilings_CloneIsIndependent(t *testing.T) {
	c := DefaultCeilings()
	cp := c.Clone()
	cp[TierGuest][ServiceBedrock] = 99
	if c[TierGuest][ServiceBedrock] != 5 {
		t.Error("Clone shares state with original")
	}
}

func TestStoreError_IsUnavailable(t *testing.T) {
	err := fmt.Errorf("check: %w", &StoreError{Backend: "redis", Op: "incr", Err: errors.New("dial tcp: refused")})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatal("StoreError should match ErrStoreUnavailable")
	}
	if errors.Is(err, ErrLimitExceeded) {
		t.Fatal("StoreError must not match ErrLimitExceeded")
	}
}

func TestExceededError_UnwrapsToLimitExceeded(t *testing.T) {
	err := &ExceededError{Identity: "u1", Tier: TierUser, Service: ServiceBedrock, Current: 50, Limit: 50}
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatal("ExceededError should unwrap to ErrLimitExceeded")
	}
	if got := err.Error(); got != "quota: bedrock limit reached for user (50/50)" {
		t.Errorf("unexpected message %q", got)
	}
}
