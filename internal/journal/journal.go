package journal

import (
	"context"
	"time"
)

// Outcome is how an engagement surface was left.
type Outcome string

const (
	// OutcomeEnded means an engagement genuinely ran and ended.
	OutcomeEnded Outcome = "ended"
	// OutcomeClosed means the visitor closed a pre-engagement screen.
	OutcomeClosed Outcome = "closed"
)

// Record is one engagement's outcome row. Transcripts are never stored here.
type Record struct {
	ID        string
	Kind      string
	StartedAt time.Time
	EndedAt   *time.Time
	Outcome   Outcome
	EndReason string
	Upgrades  int
}

// Journal records engagement outcomes for host analytics. All writes are
// best effort; the coordinator logs and ignores failures.
type Journal interface {
	// RecordStart inserts a row for a newly started engagement surface.
	RecordStart(ctx context.Context, id, kind string, startedAt time.Time) error

	// RecordUpgrade bumps the upgrade count and current kind.
	RecordUpgrade(ctx context.Context, id, kind string) error

	// RecordEnd finalizes the row with an outcome.
	RecordEnd(ctx context.Context, id string, outcome Outcome, reason string, endedAt time.Time) error

	// Recent returns the most recent records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// Close closes the underlying storage.
	Close() error
}
