package quota

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLimitExceeded is returned when a conditional increment is refused
	// because the record already holds its ceiling.
	ErrLimitExceeded = errors.New("quota: daily limit exceeded")

	// ErrStoreUnavailable marks quota store transport failures. Callers
	// treat it as a denial.
	ErrStoreUnavailable = errors.New("quota: store unavailable")

	// ErrConfiguration marks a missing ceiling for a tier and service.
	ErrConfiguration = errors.New("quota: configuration error")
)

// StoreError wraps a backend failure.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("quota/%s: %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// Is reports StoreError as ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// ConfigurationError reports a tier/service pair without a ceiling.
type ConfigurationError struct {
	Tier    Tier
	Service Service
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("quota: no ceiling configured for tier %q service %q", e.Tier, e.Service)
}

// Is reports ConfigurationError as ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ExceededError describes the service that denied a request.
type ExceededError struct {
	Identity string
	Tier     Tier
	Service  Service
	Current  int64
	Limit    int64
	ResetAt  time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota: %s limit reached for %s (%d/%d)", e.Service.Short(), e.Tier, e.Current, e.Limit)
}

// Unwrap returns ErrLimitExceeded.
func (e *ExceededError) Unwrap() error { return ErrLimitExceeded }
