package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/engageworks/engage-go/internal/journal"
)

const schema = `
CREATE TABLE IF NOT EXISTS engagements (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP,
	outcome    TEXT NOT NULL DEFAULT '',
	end_reason TEXT NOT NULL DEFAULT '',
	upgrades   INTEGER NOT NULL DEFAULT 0
);
`

// Store implements journal.Journal for SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite journal at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordStart inserts a row for a newly started engagement surface.
func (s *Store) RecordStart(ctx context.Context, id, kind string, startedAt time.Time) error {
	query := `
		INSERT INTO engagements (id, kind, started_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, kind, startedAt); err != nil {
		return fmt.Errorf("insert engagement: %w", err)
	}
	return nil
}

// RecordUpgrade bumps the upgrade count and current kind.
func (s *Store) RecordUpgrade(ctx context.Context, id, kind string) error {
	query := `
		UPDATE engagements
		SET kind = ?, upgrades = upgrades + 1
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, kind, id)
	if err != nil {
		return fmt.Errorf("update engagement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("engagement not found: %s", id)
	}
	return nil
}

// RecordEnd finalizes the row with an outcome.
func (s *Store) RecordEnd(ctx context.Context, id string, outcome journal.Outcome, reason string, endedAt time.Time) error {
	query := `
		UPDATE engagements
		SET ended_at = ?, outcome = ?, end_reason = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, endedAt, string(outcome), reason, id)
	if err != nil {
		return fmt.Errorf("finalize engagement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("engagement not found: %s", id)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*journal.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, kind, started_at, ended_at, outcome, end_reason, upgrades
		FROM engagements
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query engagements: %w", err)
	}
	defer rows.Close()

	var records []*journal.Record
	for rows.Next() {
		var (
			rec     journal.Record
			endedAt sql.NullTime
			outcome string
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.StartedAt, &endedAt, &outcome, &rec.EndReason, &rec.Upgrades); err != nil {
			return nil, fmt.Errorf("scan engagement: %w", err)
		}
		if endedAt.Valid {
			rec.EndedAt = &endedAt.Time
		}
		rec.Outcome = journal.Outcome(outcome)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engagements: %w", err)
	}
	return records, nil
}

// Get returns a single record by engagement ID.
func (s *Store) Get(ctx context.Context, id string) (*journal.Record, error) {
	query := `
		SELECT id, kind, started_at, ended_at, outcome, end_reason, upgrades
		FROM engagements
		WHERE id = ?
	`
	var (
		rec     journal.Record
		endedAt sql.NullTime
		outcome string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Kind, &rec.StartedAt, &endedAt, &outcome, &rec.EndReason, &rec.Upgrades,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("engagement not found: %w", err)
		}
		return nil, fmt.Errorf("query engagement: %w", err)
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	rec.Outcome = journal.Outcome(outcome)
	return &rec, nil
}

var _ journal.Journal = (*Store)(nil)
