package secrets

import "context"

// Provider retrieves secrets from one backend.
type Provider interface {
	// Get returns the named secret or an error when it is absent.
	Get(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs ("env", "file").
	Name() string

	// Supports reports whether the provider may hold name.
	Supports(name string) bool
}
