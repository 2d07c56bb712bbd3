package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSecret(t *testing.T, dir, name, value string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), mode); err != nil {
		t.Fatal(err)
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("TAILOR_SECRET_GEMINI_API_KEY", "g-123")
	p := NewEnvProvider("")

	value, err := p.Get(context.Background(), "gemini-api-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "g-123" {
		t.Errorf("expected g-123, got %q", value)
	}
	if _, err := p.Get(context.Background(), "missing"); err == nil {
		t.Error("expected error for unset secret")
	}
}

func TestFileProvider_Get(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "jwt-key", "value\n", 0o600)

	p, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer p.Close()

	value, err := p.Get(context.Background(), "jwt-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "value" {
		t.Errorf("expected trimmed value, got %q", value)
	}
	if !p.Supports("jwt-key") || p.Supports("other") {
		t.Error("Supports does not follow the directory contents")
	}
}

func TestFileProvider_Permissions(t *testing.T) {
	tests := []struct {
		mode   os.FileMode
		wantOK bool
	}{
		{0o600, true},
		{0o400, true},
		{0o644, false},
		{0o640, false},
	}
	for _, tc := range tests {
		dir := t.TempDir()
		writeSecret(t, dir, "s", "v", tc.mode)
		p, err := NewFileProvider(dir, false)
		if err != nil {
			t.Fatal(err)
		}
		_, err = p.Get(context.Background(), "s")
		if (err == nil) != tc.wantOK {
			t.Errorf("mode %o: err = %v, want ok = %v", tc.mode, err, tc.wantOK)
		}
	}
}

func TestFileProvider_RejectsTraversal(t *testing.T) {
	p, err := NewFileProvider(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"../etc/passwd", "a/b", "..", ""} {
		if _, err := p.Get(context.Background(), name); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}

func TestFileProvider_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileProvider(path, false); err == nil {
		t.Error("expected error for a regular file")
	}
}

func TestFileProvider_WatchPicksUpRotation(t *testing.T) {
	dir := t.TempDir()
	staging := t.TempDir()
	writeSecret(t, dir, "jwt-key", "original", 0o600)

	p, err := NewFileProvider(dir, true)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer p.Close()

	changed := make(chan struct{}, 8)
	p.OnChange(func() { changed <- struct{}{} })

	if v, _ := p.Get(context.Background(), "jwt-key"); v != "original" {
		t.Fatalf("expected original, got %q", v)
	}

	writeSecret(t, staging, "jwt-key", "rotated", 0o600)
	if err := os.Rename(filepath.Join(staging, "jwt-key"), filepath.Join(dir, "jwt-key")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		v, err := p.Get(context.Background(), "jwt-key")
		if err == nil && v == "rotated" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected rotated value, got %q (err %v)", v, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

type countingProvider struct {
	name   string
	values map[string]string
	calls  int
}

func (p *countingProvider) Get(_ context.Context, name string) (string, error) {
	p.calls++
	v, ok := p.values[name]
	if !ok {
		return "", errors.New("not here")
	}
	return v, nil
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Supports(name string) bool { return true }

func TestManager_FallbackAndCache(t *testing.T) {
	first := &countingProvider{name: "first", values: map[string]string{}}
	second := &countingProvider{name: "second", values: map[string]string{"db": "postgres://x"}}
	m := NewManager([]Provider{first, second}, time.Minute)

	for i := 0; i < 3; i++ {
		v, err := m.Get(context.Background(), "db")
		if err != nil || v != "postgres://x" {
			t.Fatalf("Get = %q, %v", v, err)
		}
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("expected one call each, got %d and %d", first.calls, second.calls)
	}

	m.Invalidate()
	if _, err := m.Get(context.Background(), "db"); err != nil {
		t.Fatal(err)
	}
	if second.calls != 2 {
		t.Errorf("expected a provider call after Invalidate, got %d", second.calls)
	}

	if _, err := m.Get(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown secret")
	}
}

func TestManager_NoCache(t *testing.T) {
	p := &countingProvider{name: "p", values: map[string]string{"k": "v"}}
	m := NewManager([]Provider{p}, 0)
	_, _ = m.Get(context.Background(), "k")
	_, _ = m.Get(context.Background(), "k")
	if p.calls != 2 {
		t.Errorf("expected 2 calls without cache, got %d", p.calls)
	}
}

func TestManager_Resolve(t *testing.T) {
	p := &countingProvider{name: "p", values: map[string]string{"pw": "hunter2", "host": "db"}}
	m := NewManager([]Provider{p}, time.Minute)

	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"plain-value", "plain-value", false},
		{"${secret:pw}", "hunter2", false},
		{"postgres://app:${secret:pw}@${secret:host}/tailor", "postgres://app:hunter2@db/tailor", false},
		{"${secret:absent}", "", true},
	}
	for _, tc := range tests {
		got, err := m.Resolve(context.Background(), tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("Resolve(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestManager_ResolveAll(t *testing.T) {
	p := &countingProvider{name: "p", values: map[string]string{"key": "k"}}
	m := NewManager([]Provider{p}, time.Minute)

	a, b := "${secret:key}", "literal"
	if err := m.ResolveAll(context.Background(), &a, &b); err != nil {
		t.Fatal(err)
	}
	if a != "k" || b != "literal" {
		t.Errorf("got %q, %q", a, b)
	}

	c := "${secret:missing}"
	err := m.ResolveAll(context.Background(), &c)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("expected unresolved error, got %v", err)
	}
	if c != "${secret:missing}" {
		t.Errorf("failed field was modified: %q", c)
	}
}

func TestRedactName(t *testing.T) {
	if got := redactName("gemini-api-key"); got != "ge...ey" {
		t.Errorf("redactName = %q", got)
	}
	if got := redactName("ab"); got != "***" {
		t.Errorf("redactName short = %q", got)
	}
}
