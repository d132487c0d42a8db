package journal

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestInsertSQL_ColumnOrderMatchesExecArgs(t *testing.T) {
	// insert() passes e.id, e.diskID, e.action, e.slot, e.recordedAt in that
	// order; insertSQL's column list must name them in the same order or the
	// values land in the wrong columns.
	want := []string{"id", "disk_id", "action", "slot", "recorded_at"}
	for _, col := range want {
		if !strings.Contains(insertSQL, `"`+col+`"`) {
			t.Fatalf("insertSQL missing column %q: %s", col, insertSQL)
		}
	}
	prev := -1
	for _, col := range want {
		pos := strings.Index(insertSQL, `"`+col+`"`)
		if pos <= prev {
			t.Fatalf("insertSQL: column %q out of order: %s", col, insertSQL)
		}
		prev = pos
	}
}

// TestPostgresJournal_seqIncrementsMonotonically models the increment insert
// applies to seq before each row; it does not touch a database.
func TestPostgresJournal_seqIncrementsMonotonically(t *testing.T) {
	j := &PostgresJournal{}
	j.seq++
	first := j.seq
	j.seq++
	second := j.seq
	if second != first+1 {
		t.Fatalf("expected monotonic sequence, got %d then %d", first, second)
	}
}

func TestMaxIDSQL_QueriesJournalTableHighWaterMark(t *testing.T) {
	if !strings.Contains(maxIDSQL, `"sfs_journal"`) {
		t.Fatalf("maxIDSQL should query sfs_journal: %s", maxIDSQL)
	}
	if !strings.Contains(maxIDSQL, "MAX(") || !strings.Contains(maxIDSQL, `"id"`) {
		t.Fatalf("maxIDSQL should select MAX(id): %s", maxIDSQL)
	}
	if !strings.Contains(maxIDSQL, "COALESCE") {
		t.Fatalf("maxIDSQL must COALESCE to 0 for an empty table, or Scan fails on NULL: %s", maxIDSQL)
	}
}

// TestPostgresJournal_seededSequenceContinuesFromHighWaterMark models what
// Open does after scanning maxIDSQL against a table that already has rows:
// a PostgresJournal seeded with the existing high-water mark must hand out
// the next ID above it, not restart from 0 and collide with rows a prior
// process already wrote.
func TestPostgresJournal_seededSequenceContinuesFromHighWaterMark(t *testing.T) {
	j := &PostgresJournal{seq: 41}
	j.seq++
	if j.seq != 42 {
		t.Fatalf("expected seeded sequence to continue at 42, got %d", j.seq)
	}
}

func TestTimeFromContext_DefaultsToNow(t *testing.T) {
	before := time.Now().UTC()
	got := timeFromContext(context.Background())
	after := time.Now().UTC()
	if got.Before(before) || got.After(after) {
		t.Fatalf("timeFromContext with no override: got %v; wanted between %v and %v", got, before, after)
	}
}

func TestTimeFromContext_UsesOverride(t *testing.T) {
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := WithTime(context.Background(), want)
	if got := timeFromContext(ctx); !got.Equal(want) {
		t.Fatalf("timeFromContext with override: got %v; wanted %v", got, want)
	}
}
