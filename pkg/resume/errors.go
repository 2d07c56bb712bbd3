package resume

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks requests rejected before any work was done.
	ErrInvalidInput = errors.New("resume: invalid input")

	// ErrNotFound marks a missing document, result or master resume.
	ErrNotFound = errors.New("resume: not found")

	// ErrUnauthenticated marks an operation that needs a signed-in user.
	ErrUnauthenticated = errors.New("resume: authentication required")

	// ErrForbidden marks a document owned by another caller.
	ErrForbidden = errors.New("resume: document belongs to another caller")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// UpstreamError reports a failed call to extraction or generation after
// quota was charged.
type UpstreamError struct {
	Service string
	Op      string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("resume: %s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
