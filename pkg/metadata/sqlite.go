package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps records in a SQLite file. Feedback and entries are
// stored as JSON columns.
type SQLiteStore struct {
	db        *sql.DB
	closeOnce sync.Once
	now       func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and if needed creates) the database at path.
// ":memory:" is accepted for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS analysis_results (
		result_id TEXT PRIMARY KEY,
		resume_key TEXT NOT NULL,
		job_description TEXT NOT NULL,
		score INTEGER NOT NULL,
		feedback TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_results_expires_at ON analysis_results(expires_at);

	CREATE TABLE IF NOT EXISTS master_resumes (
		user_id TEXT PRIMARY KEY,
		object_key TEXT NOT NULL,
		entries TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`)
	return err
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func (s *SQLiteStore) GetResult(ctx context.Context, resultID string) (*AnalysisResult, error) {
	var (
		r                   AnalysisResult
		feedback            string
		created, expiresSec int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT result_id, resume_key, job_description, score, feedback, user_id, created_at, expires_at
		FROM analysis_results WHERE result_id = ?`, resultID).
		Scan(&r.ResultID, &r.ResumeKey, &r.JobDescription, &r.Score, &feedback, &r.UserID, &created, &expiresSec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("metadata/sqlite: get result: %w", err)
	}
	if err := json.Unmarshal([]byte(feedback), &r.Feedback); err != nil {
		return nil, fmt.Errorf("metadata/sqlite: decode feedback: %w", err)
	}
	r.CreatedAt = timeOrZero(created)
	r.ExpiresAt = timeOrZero(expiresSec)
	if r.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *SQLiteStore) PutResult(ctx context.Context, r *AnalysisResult) error {
	if err := validateResult(r); err != nil {
		return err
	}
	feedback, err := json.Marshal(r.Feedback)
	if err != nil {
		return fmt.Errorf("metadata/sqlite: encode feedback: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_results (result_id, resume_key, job_description, score, feedback, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (result_id) DO UPDATE SET
			resume_key = excluded.resume_key,
			job_description = excluded.job_description,
			score = excluded.score,
			feedback = excluded.feedback,
			user_id = excluded.user_id,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		r.ResultID, r.ResumeKey, r.JobDescription, r.Score, string(feedback), r.UserID,
		unixOrZero(r.CreatedAt), unixOrZero(r.ExpiresAt))
	if err != nil {
		return fmt.Errorf("metadata/sqlite: put result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMaster(ctx context.Context, userID string) (*MasterResume, error) {
	var (
		m       MasterResume
		entries string
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, object_key, entries, updated_at FROM master_resumes WHERE user_id = ?`, userID).
		Scan(&m.UserID, &m.ObjectKey, &entries, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("metadata/sqlite: get master: %w", err)
	}
	if err := json.Unmarshal([]byte(entries), &m.Entries); err != nil {
		return nil, fmt.Errorf("metadata/sqlite: decode entries: %w", err)
	}
	m.UpdatedAt = timeOrZero(updated)
	return &m, nil
}

func (s *SQLiteStore) PutMaster(ctx context.Context, m *MasterResume) error {
	if err := validateMaster(m); err != nil {
		return err
	}
	entries, err := json.Marshal(m.Entries)
	if err != nil {
		return fmt.Errorf("metadata/sqlite: encode entries: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO master_resumes (user_id, object_key, entries, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			object_key = excluded.object_key,
			entries = excluded.entries,
			updated_at = excluded.updated_at`,
		m.UserID, m.ObjectKey, string(entries), unixOrZero(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("metadata/sqlite: put master: %w", err)
	}
	return nil
}

// DeleteExpired removes results whose expiry is before now.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_results WHERE expires_at > 0 AND expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("metadata/sqlite: delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.db.Close() })
	return err
}
