package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/telemetry/tracing"
)

// AdmissionOrder is the order in which a multi-service request is charged.
// Extraction gates first because it precedes generation in every pipeline.
var AdmissionOrder = []quota.Service{quota.ServiceTextract, quota.ServiceBedrock}

// Recorder receives quota decisions.
type Recorder interface {
	RecordQuotaCheck(tier, service, result string, duration time.Duration)
}

// Result is the outcome of one CheckAndConsume call.
type Result struct {
	Allowed   bool
	Service   quota.Service
	Current   int64
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Usage is a read-only view of one service's counter.
type Usage struct {
	Identity  quota.Identity
	Service   quota.Service
	Current   int64
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Limiter enforces per-identity daily ceilings.
type Limiter struct {
	store    quota.Store
	ceilings quota.Ceilings
	clock    quota.Clock
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source.
func WithClock(c quota.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(l *Limiter) { l.recorder = r }
}

// New creates a Limiter. The ceiling table is validated and copied; it
// cannot change afterwards.
func New(store quota.Store, ceilings quota.Ceilings, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("quota store is required")
	}
	if err := ceilings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ceilings: %w", err)
	}

	l := &Limiter{
		store:    store,
		ceilings: ceilings.Clone(),
		clock:    quota.SystemClock{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("resumetailor-hq/tailor/quota"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "quota.limiter")
	return l, nil
}

// CheckAndConsume charges one request against svc for id. A store failure is
// returned as an error with a denied Result.
func (l *Limiter) CheckAndConsume(ctx context.Context, id quota.Identity, svc quota.Service) (Result, error) {
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "quota.check_and_consume", trace.WithAttributes(
		attribute.String(tracing.AttrTier, string(id.Tier)),
		attribute.String(tracing.AttrQuotaService, string(svc)),
	))
	defer span.End()

	limit, err := l.ceilings.Lookup(id.Tier, svc)
	if err != nil {
		l.logger.Error("no ceiling configured", "tier", id.Tier, "service", svc)
		tracing.SetError(span, err)
		l.record(id.Tier, svc, "config_error", start)
		return Result{Service: svc}, err
	}

	now := l.clock.Now()
	key := quota.PeriodKey(now, svc)
	res := Result{
		Service: svc,
		Limit:   limit,
		ResetAt: quota.NextReset(now),
	}

	count, err := l.store.IncrementIfUnderLimit(ctx, id.ID, key, limit, now.Add(quota.RecordTTL))
	switch {
	case err == nil:
		res.Allowed = true
		res.Current = count
		res.Remaining = max(limit-count, 0)
		span.SetAttributes(
			attribute.String(tracing.AttrQuotaResult, "allowed"),
			attribute.Int64(tracing.AttrQuotaCount, count),
			attribute.Int64(tracing.AttrQuotaLimit, limit),
		)
		l.logger.Debug("quota request allowed",
			"identity", id.ID, "service", svc, "current", count, "limit", limit)
		l.record(id.Tier, svc, "allowed", start)
		return res, nil

	case errors.Is(err, quota.ErrLimitExceeded):
		res.Current = l.currentAfterDenial(ctx, id, key, limit)
		span.SetAttributes(
			attribute.String(tracing.AttrQuotaResult, "denied"),
			attribute.Int64(tracing.AttrQuotaCount, res.Current),
			attribute.Int64(tracing.AttrQuotaLimit, limit),
		)
		l.logger.Warn("quota limit exceeded",
			"identity", id.ID, "tier", id.Tier, "service", svc, "current", res.Current, "limit", limit)
		l.record(id.Tier, svc, "denied", start)
		return res, nil

	default:
		tracing.SetError(span, err)
		l.logger.Error("quota store failure, denying request",
			"identity", id.ID, "service", svc, "error", err)
		l.record(id.Tier, svc, "store_error", start)
		if !errors.Is(err, quota.ErrStoreUnavailable) {
			err = &quota.StoreError{Backend: "unknown", Op: "increment", Err: err}
		}
		return res, err
	}
}

// currentAfterDenial reads the counter for the 429 body. The read is best
// effort; on failure the ceiling itself is reported.
func (l *Limiter) currentAfterDenial(ctx context.Context, id quota.Identity, key string, limit int64) int64 {
	n, err := l.store.ReadCount(ctx, id.ID, key)
	if err != nil {
		l.logger.Debug("usage read after denial failed", "identity", id.ID, "error", err)
		return limit
	}
	return n
}

// Admit charges every requested service in AdmissionOrder and stops at the
// first denial, which is returned as *quota.ExceededError. Services charged
// before the denial are not refunded.
func (l *Limiter) Admit(ctx context.Context, id quota.Identity, services ...quota.Service) ([]Result, error) {
	results := make([]Result, 0, len(services))
	for _, svc := range orderServices(services) {
		res, err := l.CheckAndConsume(ctx, id, svc)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if !res.Allowed {
			return results, &quota.ExceededError{
				Identity: id.ID,
				Tier:     id.Tier,
				Service:  svc,
				Current:  res.Current,
				Limit:    res.Limit,
				ResetAt:  res.ResetAt,
			}
		}
	}
	return results, nil
}

// orderServices sorts services by AdmissionOrder, keeping unknown services
// after the known ones in their given order. Duplicates are dropped.
func orderServices(services []quota.Service) []quota.Service {
	want := make(map[quota.Service]bool, len(services))
	for _, s := range services {
		want[s] = true
	}
	ordered := make([]quota.Service, 0, len(services))
	for _, s := range AdmissionOrder {
		if want[s] {
			ordered = append(ordered, s)
			delete(want, s)
		}
	}
	for _, s := range services {
		if want[s] {
			ordered = append(ordered, s)
			delete(want, s)
		}
	}
	return ordered
}

// ReadUsage returns the current counter for id and svc without changing it.
// Store failures degrade to a zero count.
func (l *Limiter) ReadUsage(ctx context.Context, id quota.Identity, svc quota.Service) (Usage, error) {
	limit, err := l.ceilings.Lookup(id.Tier, svc)
	if err != nil {
		return Usage{}, err
	}

	now := l.clock.Now()
	u := Usage{
		Identity: id,
		Service:  svc,
		Limit:    limit,
		ResetAt:  quota.NextReset(now),
	}

	n, err := l.store.ReadCount(ctx, id.ID, quota.PeriodKey(now, svc))
	if err != nil {
		l.logger.Warn("usage read failed, reporting zero", "identity", id.ID, "service", svc, "error", err)
		n = 0
	}
	u.Current = n
	u.Remaining = max(limit-n, 0)
	return u, nil
}

// ReadUsageByID is ReadUsage for a bare identity string; the tier is inferred
// from the guest prefix.
func (l *Limiter) ReadUsageByID(ctx context.Context, id string, svc quota.Service) (Usage, error) {
	return l.ReadUsage(ctx, quota.Identity{ID: id, Tier: TierOf(id)}, svc)
}

func (l *Limiter) record(tier quota.Tier, svc quota.Service, result string, start time.Time) {
	if l.recorder == nil {
		return
	}
	l.recorder.RecordQuotaCheck(string(tier), string(svc), result, time.Since(start))
}
