package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"resumetailor-hq/tailor/pkg/quota"
)

// PostgresStore implements quota.Store on PostgreSQL.
// Safe for multi-instance deployments.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var (
	_ quota.Store   = (*PostgresStore)(nil)
	_ quota.Expirer = (*PostgresStore)(nil)
)

// PostgresOption configures PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTable sets the table name (default "quota_records").
func WithTable(name string) PostgresOption {
	return func(s *PostgresStore) { s.table = name }
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{pool: pool, table: "quota_records"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConnectPostgres opens a pool for dsn and ensures the schema exists.
func ConnectPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("quota/postgres: connect: %w", err)
	}
	s := NewPostgresStore(pool, opts...)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the quota table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			identity TEXT NOT NULL,
			period_key TEXT NOT NULL,
			request_count BIGINT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (identity, period_key)
		);
		CREATE INDEX IF NOT EXISTS %[1]s_expires_at_idx ON %[1]s (expires_at);
	`, s.table)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("quota/postgres: ensure schema: %w", err)
	}
	return nil
}

// IncrementIfUnderLimit runs a guarded upsert. When the guard rejects the
// update no row is returned.
func (s *PostgresStore) IncrementIfUnderLimit(ctx context.Context, identity, periodKey string, limit int64, expiresAt time.Time) (int64, error) {
	if err := validateKey(identity, periodKey); err != nil {
		return 0, err
	}

	var count int64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %[1]s (identity, period_key, request_count, expires_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (identity, period_key) DO UPDATE
				SET request_count = %[1]s.request_count + 1, expires_at = EXCLUDED.expires_at
				WHERE %[1]s.request_count < $4
			RETURNING request_count`, s.table),
		identity, periodKey, expiresAt.UTC(), limit,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, quota.ErrLimitExceeded
	}
	if err != nil {
		return 0, &quota.StoreError{Backend: "postgres", Op: "increment", Err: err}
	}
	return count, nil
}

// ReadCount returns the stored count or 0.
func (s *PostgresStore) ReadCount(ctx context.Context, identity, periodKey string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT request_count FROM %s WHERE identity = $1 AND period_key = $2`, s.table),
		identity, periodKey,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &quota.StoreError{Backend: "postgres", Op: "read", Err: err}
	}
	return count, nil
}

// DeleteExpired removes expired rows.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1`, s.table), now.UTC())
	if err != nil {
		return 0, &quota.StoreError{Backend: "postgres", Op: "expire", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
