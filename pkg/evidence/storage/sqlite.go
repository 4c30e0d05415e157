package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/callisto/pkg/evidence"
	"mercator-hq/callisto/pkg/guardrail"
)

const evidenceSchema = `
CREATE TABLE IF NOT EXISTS evidence (
	id          TEXT    PRIMARY KEY,
	request_id  TEXT    NOT NULL,
	phase       TEXT    NOT NULL,
	policy_name TEXT    NOT NULL,
	severity    TEXT    NOT NULL,
	message     TEXT    NOT NULL,
	partial     INTEGER NOT NULL,
	attempt     INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evidence_request ON evidence (request_id, created_at);
CREATE INDEX IF NOT EXISTS idx_evidence_created ON evidence (created_at);
`

// SQLite is a durable evidence store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the evidence database at the given
// path. Use ":memory:" for an ephemeral store.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening evidence store: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(evidenceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing evidence store: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Save writes one record.
func (s *SQLite) Save(ctx context.Context, rec evidence.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence (id, request_id, phase, policy_name, severity, message, partial, attempt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, string(rec.Phase), rec.PolicyName, rec.Severity.String(),
		rec.Message, boolToInt(rec.Partial), rec.Attempt, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving evidence record: %w", err)
	}
	return nil
}

// ByRequest returns all records for a request ID, oldest first.
func (s *SQLite) ByRequest(ctx context.Context, requestID string) ([]evidence.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, phase, policy_name, severity, message, partial, attempt, created_at
		 FROM evidence WHERE request_id = ? ORDER BY created_at`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying evidence: %w", err)
	}
	defer rows.Close()

	var out []evidence.Record
	for rows.Next() {
		var (
			rec       evidence.Record
			phase     string
			severity  string
			partial   int
			createdNs int64
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &phase, &rec.PolicyName,
			&severity, &rec.Message, &partial, &rec.Attempt, &createdNs); err != nil {
			return nil, fmt.Errorf("scanning evidence record: %w", err)
		}

		rec.Phase = guardrail.Flavor(phase)
		sev, err := guardrail.ParseSeverity(severity)
		if err != nil {
			return nil, fmt.Errorf("scanning evidence record: %w", err)
		}
		rec.Severity = sev
		rec.Partial = partial != 0
		rec.CreatedAt = time.Unix(0, createdNs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes records created before the cutoff.
func (s *SQLite) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM evidence WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning evidence: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
