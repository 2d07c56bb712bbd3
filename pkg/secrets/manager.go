package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// refPattern matches ${secret:name}.
var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// IsReference reports whether value contains a secret reference.
func IsReference(value string) bool {
	return refPattern.MatchString(value)
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Manager resolves secrets through an ordered list of providers and caches
// the results for a fixed TTL.
type Manager struct {
	providers []Provider
	ttl       time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a manager. A zero ttl disables caching.
func NewManager(providers []Provider, ttl time.Duration) *Manager {
	return &Manager{
		providers: providers,
		ttl:       ttl,
		now:       time.Now,
		cache:     make(map[string]cacheEntry),
	}
}

// Get returns the named secret from the first provider that has it.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	if value, ok := m.cached(name); ok {
		return value, nil
	}

	var lastErr error
	for _, p := range m.providers {
		if !p.Supports(name) {
			continue
		}
		value, err := p.Get(ctx, name)
		if err != nil {
			lastErr = err
			slog.Debug("secret provider miss", "provider", p.Name(), "name", redactName(name), "error", err)
			continue
		}
		m.store(name, value)
		return value, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", name, lastErr)
	}
	return "", fmt.Errorf("secret %q not found", name)
}

// Resolve replaces every ${secret:name} in value. Values without a
// reference are returned unchanged.
func (m *Manager) Resolve(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	var failures []string
	out := refPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		secret, err := m.Get(ctx, name)
		if err != nil {
			failures = append(failures, err.Error())
			return match
		}
		return secret
	})
	if len(failures) > 0 {
		return "", fmt.Errorf("unresolved secret references: %s", strings.Join(failures, "; "))
	}
	return out, nil
}

// ResolveAll resolves each field in place and stops at the first failure.
func (m *Manager) ResolveAll(ctx context.Context, fields ...*string) error {
	for _, f := range fields {
		v, err := m.Resolve(ctx, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// Invalidate drops every cached value.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cache = make(map[string]cacheEntry)
	m.mu.Unlock()
}

func (m *Manager) cached(name string) (string, bool) {
	if m.ttl <= 0 {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.cache[name]
	if !ok || m.now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (m *Manager) store(name, value string) {
	if m.ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.cache[name] = cacheEntry{value: value, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

// redactName keeps the first and last two characters of a secret name.
func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
