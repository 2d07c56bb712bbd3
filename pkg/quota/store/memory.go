package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resumetailor-hq/tailor/pkg/quota"
)

// MemoryStore implements quota.Store using an in-process map.
// All data is lost when the process exits.
type MemoryStore struct {
	// records maps identity\x00periodKey to its record.
	records map[string]*quota.Record

	// mu serializes increments so the check and the write are one step.
	mu sync.Mutex

	closed bool
}

var (
	_ quota.Store   = (*MemoryStore)(nil)
	_ quota.Expirer = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*quota.Record),
	}
}

// IncrementIfUnderLimit adds one to the record when it is below limit.
func (m *MemoryStore) IncrementIfUnderLimit(ctx context.Context, identity, periodKey string, limit int64, expiresAt time.Time) (int64, error) {
	if err := validateKey(identity, periodKey); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, &quota.StoreError{Backend: "memory", Op: "increment", Err: err}
	}

	key := m.makeKey(identity, periodKey)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, &quota.StoreError{Backend: "memory", Op: "increment", Err: errClosed}
	}

	rec, exists := m.records[key]
	if !exists {
		rec = &quota.Record{Identity: identity, PeriodKey: periodKey}
		m.records[key] = rec
	} else if rec.RequestCount >= limit {
		return rec.RequestCount, quota.ErrLimitExceeded
	}

	rec.RequestCount++
	rec.ExpiresAt = expiresAt
	return rec.RequestCount, nil
}

// ReadCount returns the record's count or 0.
func (m *MemoryStore) ReadCount(ctx context.Context, identity, periodKey string) (int64, error) {
	if err := validateKey(identity, periodKey); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, &quota.StoreError{Backend: "memory", Op: "read", Err: errClosed}
	}
	if rec, ok := m.records[m.makeKey(identity, periodKey)]; ok {
		return rec.RequestCount, nil
	}
	return 0, nil
}

// DeleteExpired removes records whose expiry has passed.
func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key, rec := range m.records {
		if rec.ExpiresAt.Before(now) {
			delete(m.records, key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds unless the store is closed.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) makeKey(identity, periodKey string) string {
	return fmt.Sprintf("%s\x00%s", identity, periodKey)
}
