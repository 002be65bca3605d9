package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/engageworks/engage-go/internal/journal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJournalLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	if err := store.RecordStart(ctx, "eng-1", "chat", started); err != nil {
		t.Fatalf("record start: %v", err)
	}
	if err := store.RecordUpgrade(ctx, "eng-1", "videoCall"); err != nil {
		t.Fatalf("record upgrade: %v", err)
	}

	ended := started.Add(5 * time.Minute)
	if err := store.RecordEnd(ctx, "eng-1", journal.OutcomeEnded, "operator_hung_up", ended); err != nil {
		t.Fatalf("record end: %v", err)
	}

	rec, err := store.Get(ctx, "eng-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Kind != "videoCall" || rec.Upgrades != 1 {
		t.Fatalf("unexpected record after upgrade: %+v", rec)
	}
	if rec.Outcome != journal.OutcomeEnded || rec.EndReason != "operator_hung_up" {
		t.Fatalf("unexpected outcome: %+v", rec)
	}
	if rec.EndedAt == nil || !rec.EndedAt.Equal(ended) {
		t.Fatalf("unexpected ended_at: %+v", rec.EndedAt)
	}
}

func TestJournalRecentNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"eng-a", "eng-b", "eng-c"} {
		if err := store.RecordStart(ctx, id, "chat", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("record start %s: %v", id, err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "eng-c" || records[1].ID != "eng-b" {
		t.Fatalf("unexpected order: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestJournalEndUnknownEngagement(t *testing.T) {
	store := newTestStore(t)

	err := store.RecordEnd(context.Background(), "ghost", journal.OutcomeClosed, "", time.Now())
	if err == nil {
		t.Fatal("expected error for unknown engagement")
	}
}
