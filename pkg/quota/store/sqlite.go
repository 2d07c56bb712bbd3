package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"resumetailor-hq/tailor/pkg/quota"
)

// SQLiteStore implements quota.Store on a SQLite database file.
//
// The conditional increment is a single upsert statement whose DO UPDATE
// clause is guarded by the ceiling, so SQLite's own write lock provides the
// atomicity. Suitable for single-instance deployments.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	closeOnce sync.Once

	incrementStmt *sql.Stmt
	readStmt      *sql.Stmt
	expireStmt    *sql.Stmt
}

var (
	_ quota.Store   = (*SQLiteStore)(nil)
	_ quota.Expirer = (*SQLiteStore)(nil)
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" is accepted for tests.
	Path string

	// BusyTimeout is how long to wait for the write lock.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (and if needed creates) a SQLite quota store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports a single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, dbPath: cfg.Path}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS quota_records (
		identity TEXT NOT NULL,
		period_key TEXT NOT NULL,
		request_count INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (identity, period_key)
	);

	CREATE INDEX IF NOT EXISTS idx_quota_records_expires_at ON quota_records(expires_at);
	`)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.incrementStmt, err = s.db.Prepare(`
		INSERT INTO quota_records (identity, period_key, request_count, expires_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (identity, period_key) DO UPDATE SET
			request_count = quota_records.request_count + 1,
			expires_at = excluded.expires_at
		WHERE quota_records.request_count < ?
		RETURNING request_count
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare increment statement: %w", err)
	}

	s.readStmt, err = s.db.Prepare(`
		SELECT request_count FROM quota_records
		WHERE identity = ? AND period_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare read statement: %w", err)
	}

	s.expireStmt, err = s.db.Prepare(`DELETE FROM quota_records WHERE expires_at < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare expire statement: %w", err)
	}

	return nil
}

// IncrementIfUnderLimit runs the guarded upsert. No returned row means the
// guard rejected the update.
func (s *SQLiteStore) IncrementIfUnderLimit(ctx context.Context, identity, periodKey string, limit int64, expiresAt time.Time) (int64, error) {
	if err := validateKey(identity, periodKey); err != nil {
		return 0, err
	}

	var count int64
	err := s.incrementStmt.QueryRowContext(ctx, identity, periodKey, expiresAt.Unix(), limit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, quota.ErrLimitExceeded
	}
	if err != nil {
		return 0, &quota.StoreError{Backend: "sqlite", Op: "increment", Err: err}
	}
	return count, nil
}

// ReadCount returns the stored count or 0.
func (s *SQLiteStore) ReadCount(ctx context.Context, identity, periodKey string) (int64, error) {
	if err := validateKey(identity, periodKey); err != nil {
		return 0, err
	}

	var count int64
	err := s.readStmt.QueryRowContext(ctx, identity, periodKey).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &quota.StoreError{Backend: "sqlite", Op: "read", Err: err}
	}
	return count, nil
}

// DeleteExpired removes records whose expiry is before now.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.expireStmt.ExecContext(ctx, now.Unix())
	if err != nil {
		return 0, &quota.StoreError{Backend: "sqlite", Op: "expire", Err: err}
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the prepared statements and the database.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.incrementStmt, s.readStmt, s.expireStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		closeErr = s.db.Close()
	})
	return closeErr
}
