package quota

import (
	"context"
	"time"
)

// Tier is the caller class used to select ceilings.
type Tier string

const (
	// TierGuest is an anonymous caller identified by network address.
	TierGuest Tier = "guest"

	// TierUser is a caller with a verified identity token.
	TierUser Tier = "user"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierGuest || t == TierUser
}

// Service is a metered downstream capability.
type Service string

const (
	// ServiceTextract meters document text extraction calls.
	ServiceTextract Service = "textract_requests"

	// ServiceBedrock meters generative text calls.
	ServiceBedrock Service = "bedrock_requests"
)

// Services lists every metered service in admission order.
var Services = []Service{ServiceTextract, ServiceBedrock}

// Short returns the service name without the "_requests" suffix.
func (s Service) Short() string {
	switch s {
	case ServiceTextract:
		return "textract"
	case ServiceBedrock:
		return "bedrock"
	default:
		return string(s)
	}
}

// GuestPrefix prefixes every guest identity.
const GuestPrefix = "guest_"

// Identity is the quota principal together with its tier.
type Identity struct {
	ID   string
	Tier Tier
}

// String returns the identity string used as the record key.
func (i Identity) String() string {
	return i.ID
}

// Record is one (identity, day, service) counter.
type Record struct {
	Identity     string
	PeriodKey    string
	RequestCount int64
	ExpiresAt    time.Time
}

// RecordTTL is how long a record lives after its last write. It must outlive
// the UTC day the record belongs to.
const RecordTTL = 48 * time.Hour

// Store persists quota records.
// Implementations must be safe for concurrent use.
type Store interface {
	// IncrementIfUnderLimit adds one to the record for (identity, periodKey)
	// when it is absent or its count is below limit, in a single atomic
	// operation, and returns the new count. When the count has already
	// reached limit it returns ErrLimitExceeded and leaves the record
	// untouched. Transport failures are reported as errors wrapping
	// ErrStoreUnavailable.
	IncrementIfUnderLimit(ctx context.Context, identity, periodKey string, limit int64, expiresAt time.Time) (int64, error)

	// ReadCount returns the current count, or 0 when no record exists.
	ReadCount(ctx context.Context, identity, periodKey string) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Expirer is implemented by backends without native record expiry.
type Expirer interface {
	// DeleteExpired removes records whose expiry is before now and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }
