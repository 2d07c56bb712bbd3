package store

import (
	"context"
	"errors"
	"time"

	"resumetailor-hq/tailor/pkg/quota"
)

// Recorder receives per-operation store measurements.
type Recorder interface {
	RecordStoreOperation(backend, op, result string, duration time.Duration)
}

// Metered wraps a quota.Store and reports every call to a Recorder.
type Metered struct {
	quota.Store
	backend  string
	recorder Recorder
}

// NewMetered wraps inner. Calls are forwarded unchanged.
func NewMetered(inner quota.Store, backend string, recorder Recorder) *Metered {
	return &Metered{Store: inner, backend: backend, recorder: recorder}
}

// IncrementIfUnderLimit forwards to the wrapped store.
func (m *Metered) IncrementIfUnderLimit(ctx context.Context, identity, periodKey string, limit int64, expiresAt time.Time) (int64, error) {
	start := time.Now()
	n, err := m.Store.IncrementIfUnderLimit(ctx, identity, periodKey, limit, expiresAt)
	m.recorder.RecordStoreOperation(m.backend, "increment", outcome(err), time.Since(start))
	return n, err
}

// ReadCount forwards to the wrapped store.
func (m *Metered) ReadCount(ctx context.Context, identity, periodKey string) (int64, error) {
	start := time.Now()
	n, err := m.Store.ReadCount(ctx, identity, periodKey)
	m.recorder.RecordStoreOperation(m.backend, "read", outcome(err), time.Since(start))
	return n, err
}

// DeleteExpired forwards when the wrapped store supports expiry.
func (m *Metered) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	exp, ok := m.Store.(quota.Expirer)
	if !ok {
		return 0, nil
	}
	start := time.Now()
	n, err := exp.DeleteExpired(ctx, now)
	m.recorder.RecordStoreOperation(m.backend, "expire", outcome(err), time.Since(start))
	return n, err
}

// Unwrap returns the wrapped store.
func (m *Metered) Unwrap() quota.Store { return m.Store }

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, quota.ErrLimitExceeded):
		return "limited"
	default:
		return "error"
	}
}
