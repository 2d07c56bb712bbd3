package store

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"resumetailor-hq/tailor/pkg/quota"
)

// RedisStore implements quota.Store on Redis. Each record is a plain
// integer key with an absolute expiry.
type RedisStore struct {
	client    goredis.UniversalClient
	keyPrefix string
}

var _ quota.Store = (*RedisStore)(nil)

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix (default "tailor:quota:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client goredis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, keyPrefix: "tailor:quota:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) recordKey(identity, periodKey string) string {
	return s.keyPrefix + identity + ":" + periodKey
}

// incrementScript performs the guarded increment.
// KEYS[1] = record key
// ARGV[1] = limit
// ARGV[2] = expiry (unix seconds)
//
// Returns the new count, or -1 when the limit is already reached.
var incrementScript = goredis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
    return -1
end
local n = redis.call("INCR", KEYS[1])
redis.call("EXPIREAT", KEYS[1], tonumber(ARGV[2]))
return n
`)

// IncrementIfUnderLimit runs the increment script.
func (s *RedisStore) IncrementIfUnderLimit(ctx context.Context, identity, periodKey string, limit int64, expiresAt time.Time) (int64, error) {
	if err := validateKey(identity, periodKey); err != nil {
		return 0, err
	}

	n, err := incrementScript.Run(ctx, s.client,
		[]string{s.recordKey(identity, periodKey)},
		limit, expiresAt.Unix(),
	).Int64()
	if err != nil {
		return 0, &quota.StoreError{Backend: "redis", Op: "increment", Err: err}
	}
	if n < 0 {
		return 0, quota.ErrLimitExceeded
	}
	return n, nil
}

// ReadCount returns the stored count or 0.
func (s *RedisStore) ReadCount(ctx context.Context, identity, periodKey string) (int64, error) {
	n, err := s.client.Get(ctx, s.recordKey(identity, periodKey)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, &quota.StoreError{Backend: "redis", Op: "read", Err: err}
	}
	return n, nil
}

// Ping sends PING.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("quota/redis: ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
