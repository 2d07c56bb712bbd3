package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix namespaces secret environment variables.
const DefaultEnvPrefix = "TAILOR_SECRET_"

// EnvProvider loads secrets from environment variables. The name is
// upper-cased, hyphens become underscores and the prefix is prepended.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider. An empty prefix selects
// DefaultEnvPrefix.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{Prefix: prefix}
}

// Get reads the variable for name.
func (p *EnvProvider) Get(_ context.Context, name string) (string, error) {
	envVar := p.envVar(name)
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("secret %q not set (env var %s)", name, envVar)
	}
	return value, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Supports is true for every name so the provider can act as a fallback.
func (p *EnvProvider) Supports(string) bool { return true }

// envVar maps "gemini-api-key" to "TAILOR_SECRET_GEMINI_API_KEY".
func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
