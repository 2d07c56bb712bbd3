package metadata

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]AnalysisResult
	masters map[string]MasterResume
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results: make(map[string]AnalysisResult),
		masters: make(map[string]MasterResume),
		now:     time.Now,
	}
}

func (m *MemoryStore) GetResult(_ context.Context, resultID string) (*AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[resultID]
	if !ok || r.Expired(m.now()) {
		return nil, ErrNotFound
	}
	r.Feedback = slices.Clone(r.Feedback)
	return &r, nil
}

func (m *MemoryStore) PutResult(_ context.Context, r *AnalysisResult) error {
	if err := validateResult(r); err != nil {
		return err
	}
	cp := *r
	cp.Feedback = slices.Clone(r.Feedback)
	m.mu.Lock()
	m.results[r.ResultID] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetMaster(_ context.Context, userID string) (*MasterResume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mr, ok := m.masters[userID]
	if !ok {
		return nil, ErrNotFound
	}
	mr.Entries = slices.Clone(mr.Entries)
	return &mr, nil
}

func (m *MemoryStore) PutMaster(_ context.Context, mr *MasterResume) error {
	if err := validateMaster(mr); err != nil {
		return err
	}
	cp := *mr
	cp.Entries = slices.Clone(mr.Entries)
	m.mu.Lock()
	m.masters[mr.UserID] = cp
	m.mu.Unlock()
	return nil
}

// DeleteExpired removes results whose expiry is before now.
func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.results {
		if r.Expired(now) {
			delete(m.results, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
