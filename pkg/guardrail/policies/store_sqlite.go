package policies

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const counterSchema = `
CREATE TABLE IF NOT EXISTS rate_counters (
	key        TEXT    NOT NULL,
	at_unix_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_counters_key_at ON rate_counters (key, at_unix_ns);
`

// SQLiteCounterStore is a sliding-window counter persisted in SQLite, so
// rate-limit state survives restarts. Uses the pure-Go driver; no cgo.
type SQLiteCounterStore struct {
	db *sql.DB
}

// NewSQLiteCounterStore opens (creating if needed) the counter database at
// the given path. Use ":memory:" for an ephemeral store.
func NewSQLiteCounterStore(path string) (*SQLiteCounterStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening counter store: %w", err)
	}

	// SQLite allows one writer at a time; serialize through database/sql.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(counterSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing counter store: %w", err)
	}

	return &SQLiteCounterStore{db: db}, nil
}

// Increment records one request and returns the trailing-window count.
// Expired rows for the key are pruned on the way.
func (s *SQLiteCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := now.Add(-window).UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("counter store: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rate_counters WHERE key = ? AND at_unix_ns <= ?`, key, cutoff); err != nil {
		return 0, fmt.Errorf("counter store prune: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rate_counters (key, at_unix_ns) VALUES (?, ?)`, key, now.UnixNano()); err != nil {
		return 0, fmt.Errorf("counter store insert: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_counters WHERE key = ?`, key).Scan(&count); err != nil {
		return 0, fmt.Errorf("counter store count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("counter store commit: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *SQLiteCounterStore) Close() error {
	return s.db.Close()
}
