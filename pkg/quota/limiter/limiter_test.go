package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"resumetailor-hq/tailor/pkg/auth"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// failingStore fails every call with a transport error.
type failingStore struct {
	quota.Store
	readErr error
	incErr  error
}

func (f *failingStore) IncrementIfUnderLimit(ctx context.Context, identity, periodKey string, limit int64, expiresAt time.Time) (int64, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	return f.Store.IncrementIfUnderLimit(ctx, identity, periodKey, limit, expiresAt)
}

func (f *failingStore) ReadCount(ctx context.Context, identity, periodKey string) (int64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.Store.ReadCount(ctx, identity, periodKey)
}

type countingRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *countingRecorder) RecordQuotaCheck(tier, service, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[result]++
}

var day = time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)

func newTestLimiter(t *testing.T, st quota.Store, opts ...Option) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: day}
	opts = append([]Option{WithClock(clock)}, opts...)
	l, err := New(st, quota.DefaultCeilings(), opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l, clock
}

func TestDeriveIdentity(t *testing.T) {
	tests := []struct {
		name   string
		addr   string
		claims *auth.Claims
		want   quota.Identity
	}{
		{"user", "203.0.113.5", &auth.Claims{Subject: "abc-123"}, quota.Identity{ID: "abc-123", Tier: quota.TierUser}},
		{"guest", "203.0.113.5", nil, quota.Identity{ID: "guest_203.0.113.5", Tier: quota.TierGuest}},
		{"empty subject is guest", "198.51.100.7", &auth.Claims{}, quota.Identity{ID: "guest_198.51.100.7", Tier: quota.TierGuest}},
		{"missing address", "", nil, quota.Identity{ID: "guest_unknown", Tier: quota.TierGuest}},
		{"guest namespace subject stays guest", "198.51.100.7", &auth.Claims{Subject: "guest_203.0.113.5"}, quota.Identity{ID: "guest_198.51.100.7", Tier: quota.TierGuest}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveIdentity(tt.addr, tt.claims)
			if got != tt.want {
				t.Errorf("DeriveIdentity() = %+v, want %+v", got, tt.want)
			}
			if again := DeriveIdentity(tt.addr, tt.claims); again != got {
				t.Error("DeriveIdentity is not deterministic")
			}
		})
	}
}

func TestMaskIdentity(t *testing.T) {
	if got := MaskIdentity(quota.Identity{ID: "guest_203.0.113.5", Tier: quota.TierGuest}); got != "guest_***" {
		t.Errorf("unexpected mask %q", got)
	}
	if got := MaskIdentity(quota.Identity{ID: "abc", Tier: quota.TierUser}); got != "abc" {
		t.Errorf("users should not be masked, got %q", got)
	}
}

func TestNew_RejectsInvalidCeilings(t *testing.T) {
	bad := quota.DefaultCeilings()
	bad[quota.TierUser][quota.ServiceBedrock] = 1
	if _, err := New(store.NewMemoryStore(), bad); err == nil {
		t.Fatal("Expected error for invalid ceilings")
	}
	if _, err := New(nil, quota.DefaultCeilings()); err == nil {
		t.Fatal("Expected error for nil store")
	}
}

// A guest with 10 textract requests already recorded today is denied on the
// next attempt, and the denial reports the current count.
func TestCheckAndConsume_GuestTextractExhausted(t *testing.T) {
	st := store.NewMemoryStore()
	l, _ := newTestLimiter(t, st)
	ctx := context.Background()
	id := DeriveIdentity("203.0.113.5", nil)

	for i := int64(1); i <= 10; i++ {
		res, err := l.CheckAndConsume(ctx, id, quota.ServiceTextract)
		if err != nil {
			t.Fatalf("CheckAndConsume failed: %v", err)
		}
		if !res.Allowed || res.Current != i || res.Remaining != 10-i {
			t.Fatalf("request %d: unexpected result %+v", i, res)
		}
	}

	res, err := l.CheckAndConsume(ctx, id, quota.ServiceTextract)
	if err != nil {
		t.Fatalf("CheckAndConsume failed: %v", err)
	}
	if res.Allowed {
		t.Fatal("Expected denial at ceiling")
	}
	if res.Current != 10 || res.Limit != 10 || res.Remaining != 0 {
		t.Errorf("unexpected denial result %+v", res)
	}
	if want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC); !res.ResetAt.Equal(want) {
		t.Errorf("Expected reset %v, got %v", want, res.ResetAt)
	}

	got, _ := st.ReadCount(ctx, "guest_203.0.113.5", "2024-03-09#textract_requests")
	if got != 10 {
		t.Errorf("record must stay at ceiling, got %d", got)
	}
}

func TestCheckAndConsume_GuestSubjectCannotDrainGuest(t *testing.T) {
	l, _ := newTestLimiter(t, store.NewMemoryStore())
	ctx := context.Background()

	impostor := DeriveIdentity("198.51.100.7", &auth.Claims{Subject: "guest_203.0.113.5"})
	for i := 0; i < 5; i++ {
		if _, err := l.CheckAndConsume(ctx, impostor, quota.ServiceBedrock); err != nil {
			t.Fatalf("check failed: %v", err)
		}
	}

	guest := DeriveIdentity("203.0.113.5", nil)
	res, err := l.CheckAndConsume(ctx, guest, quota.ServiceBedrock)
	if err != nil {
		t.Fatalf("guest check failed: %v", err)
	}
	if !res.Allowed || res.Current != 1 {
		t.Errorf("guest result = %+v, want first request allowed", res)
	}
}

func TestCheckAndConsume_TierSeparation(t *testing.T) {
	l, _ := newTestLimiter(t, store.NewMemoryStore())
	ctx := context.Background()

	guest := quota.Identity{ID: "guest_198.51.100.1", Tier: quota.TierGuest}
	user := quota.Identity{ID: "user-1", Tier: quota.TierUser}

	allowedGuest := 0
	for i := 0; i < 60; i++ {
		res, err := l.CheckAndConsume(ctx, guest, quota.ServiceBedrock)
		if err != nil {
			t.Fatalf("guest check failed: %v", err)
		}
		if res.Allowed {
			allowedGuest++
		}
	}
	allowedUser := 0
	for i := 0; i < 60; i++ {
		res, err := l.CheckAndConsume(ctx, user, quota.ServiceBedrock)
		if err != nil {
			t.Fatalf("user check failed: %v", err)
		}
		if res.Allowed {
			allowedUser++
		}
	}

	if allowedGuest != 5 {
		t.Errorf("Expected 5 guest successes, got %d", allowedGuest)
	}
	if allowedUser != 50 {
		t.Errorf("Expected 50 user successes, got %d", allowedUser)
	}
}

func TestCheckAndConsume_DailyRollover(t *testing.T) {
	l, clock := newTestLimiter(t, store.NewMemoryStore())
	ctx := context.Background()
	id := quota.Identity{ID: "guest_192.0.2.1", Tier: quota.TierGuest}

	clock.Set(time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC))
	for i := 0; i < 5; i++ {
		if res, _ := l.CheckAndConsume(ctx, id, quota.ServiceBedrock); !res.Allowed {
			t.Fatalf("request %d unexpectedly denied", i)
		}
	}
	if res, _ := l.CheckAndConsume(ctx, id, quota.ServiceBedrock); res.Allowed {
		t.Fatal("Expected denial before midnight")
	}

	clock.Set(time.Date(2024, 3, 10, 0, 0, 1, 0, time.UTC))
	res, err := l.CheckAndConsume(ctx, id, quota.ServiceBedrock)
	if err != nil {
		t.Fatalf("CheckAndConsume failed: %v", err)
	}
	if !res.Allowed || res.Current != 1 {
		t.Errorf("Expected fresh count after rollover, got %+v", res)
	}
}

func TestCheckAndConsume_ConcurrentExactness(t *testing.T) {
	l, _ := newTestLimiter(t, store.NewMemoryStore())
	ctx := context.Background()
	id := quota.Identity{ID: "user-concurrent", Tier: quota.TierUser}

	var mu sync.Mutex
	allowed := 0

	var g errgroup.Group
	for i := 0; i < 120; i++ {
		g.Go(func() error {
			res, err := l.CheckAndConsume(ctx, id, quota.ServiceTextract)
			if err != nil {
				return err
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("CheckAndConsume failed: %v", err)
	}
	if allowed != 100 {
		t.Errorf("Expected exactly 100 successes, got %d", allowed)
	}
}

func TestCheckAndConsume_FailsClosed(t *testing.T) {
	rec := &countingRecorder{}
	st := &failingStore{Store: store.NewMemoryStore(), incErr: &quota.StoreError{Backend: "test", Op: "increment", Err: errors.New("timeout")}}
	l, _ := newTestLimiter(t, st, WithRecorder(rec))

	res, err := l.CheckAndConsume(context.Background(), quota.Identity{ID: "u1", Tier: quota.TierUser}, quota.ServiceBedrock)
	if !errors.Is(err, quota.ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable, got %v", err)
	}
	if res.Allowed {
		t.Fatal("store failure must never allow")
	}
	if rec.results["store_error"] != 1 {
		t.Errorf("Expected store_error to be recorded, got %v", rec.results)
	}
}

func TestCheckAndConsume_UnclassifiedStoreErrorStillUnavailable(t *testing.T) {
	st := &failingStore{Store: store.NewMemoryStore(), incErr: errors.New("boom")}
	l, _ := newTestLimiter(t, st)

	_, err := l.CheckAndConsume(context.Background(), quota.Identity{ID: "u1", Tier: quota.TierUser}, quota.ServiceBedrock)
	if !errors.Is(err, quota.ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable, got %v", err)
	}
}

func TestCheckAndConsume_DenialReadFailureReportsLimit(t *testing.T) {
	mem := store.NewMemoryStore()
	st := &failingStore{Store: mem}
	l, _ := newTestLimiter(t, st)
	ctx := context.Background()
	id := quota.Identity{ID: "guest_192.0.2.9", Tier: quota.TierGuest}

	for i := 0; i < 5; i++ {
		l.CheckAndConsume(ctx, id, quota.ServiceBedrock)
	}
	st.readErr = errors.New("read timeout")

	res, err := l.CheckAndConsume(ctx, id, quota.ServiceBedrock)
	if err != nil {
		t.Fatalf("CheckAndConsume failed: %v", err)
	}
	if res.Allowed || res.Current != 5 {
		t.Errorf("Expected denial reporting the limit, got %+v", res)
	}
}

func TestCheckAndConsume_UnknownService(t *testing.T) {
	l, _ := newTestLimiter(t, store.NewMemoryStore())
	_, err := l.CheckAndConsume(context.Background(), quota.Identity{ID: "u1", Tier: quota.TierUser}, quota.Service("ocr_requests"))
	if !errors.Is(err, quota.ErrConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
}

func TestAdmit_OrderAndShortCircuit(t *testing.T) {
	st := store.NewMemoryStore()
	l, _ := newTestLimiter(t, st)
	ctx := context.Background()
	id := quota.Identity{ID: "guest_203.0.113.77", Tier: quota.TierGuest}

	// Exhaust bedrock so the second service in the order denies.
	for i := 0; i < 5; i++ {
		l.CheckAndConsume(ctx, id, quota.ServiceBedrock)
	}

	results, err := l.Admit(ctx, id, quota.ServiceBedrock, quota.ServiceTextract)
	var exceeded *quota.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("Expected ExceededError, got %v", err)
	}
	if exceeded.Service != quota.ServiceBedrock || exceeded.Limit != 5 || exceeded.Current != 5 {
		t.Errorf("unexpected exceeded detail %+v", exceeded)
	}
	if len(results) != 2 || results[0].Service != quota.ServiceTextract {
		t.Fatalf("Expected textract to be charged first, got %+v", results)
	}

	// The textract charge is kept.
	got, _ := st.ReadCount(ctx, id.ID, quota.PeriodKey(day, quota.ServiceTextract))
	if got != 1 {
		t.Errorf("Expected textract count 1 after denial, got %d", got)
	}
}

func TestAdmit_FirstDenialStopsLaterServices(t *testing.T) {
	st := store.NewMemoryStore()
	l, _ := newTestLimiter(t, st)
	ctx := context.Background()
	id := quota.Identity{ID: "guest_203.0.113.78", Tier: quota.TierGuest}

	for i := 0; i < 10; i++ {
		l.CheckAndConsume(ctx, id, quota.ServiceTextract)
	}
	if _, err := l.Admit(ctx, id, quota.ServiceTextract, quota.ServiceBedrock); !errors.Is(err, quota.ErrLimitExceeded) {
		t.Fatalf("Expected limit error, got %v", err)
	}
	got, _ := st.ReadCount(ctx, id.ID, quota.PeriodKey(day, quota.ServiceBedrock))
	if got != 0 {
		t.Errorf("bedrock must not be charged after textract denial, got %d", got)
	}
}

func TestReadUsage(t *testing.T) {
	st := &failingStore{Store: store.NewMemoryStore()}
	l, _ := newTestLimiter(t, st)
	ctx := context.Background()
	id := quota.Identity{ID: "guest_203.0.113.5", Tier: quota.TierGuest}

	l.CheckAndConsume(ctx, id, quota.ServiceBedrock)
	l.CheckAndConsume(ctx, id, quota.ServiceBedrock)

	u, err := l.ReadUsage(ctx, id, quota.ServiceBedrock)
	if err != nil {
		t.Fatalf("ReadUsage failed: %v", err)
	}
	if u.Current != 2 || u.Limit != 5 || u.Remaining != 3 {
		t.Errorf("unexpected usage %+v", u)
	}

	again, _ := l.ReadUsage(ctx, id, quota.ServiceBedrock)
	if again.Current != 2 {
		t.Error("ReadUsage must not mutate the counter")
	}

	byID, err := l.ReadUsageByID(ctx, "guest_203.0.113.5", quota.ServiceBedrock)
	if err != nil {
		t.Fatalf("ReadUsageByID failed: %v", err)
	}
	if byID.Identity.Tier != quota.TierGuest || byID.Current != 2 {
		t.Errorf("unexpected usage by id %+v", byID)
	}

	st.readErr = errors.New("unavailable")
	degraded, err := l.ReadUsage(ctx, id, quota.ServiceBedrock)
	if err != nil {
		t.Fatalf("ReadUsage should degrade, got %v", err)
	}
	if degraded.Current != 0 || degraded.Remaining != 5 {
		t.Errorf("Expected degraded zero usage, got %+v", degraded)
	}
}
