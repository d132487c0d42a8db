// Package journal records commit and restore events to a Postgres audit
// log, wired as the sfs.Journal hook (SPEC_FULL.md §4.13). The table has
// one fixed, compile-time-known shape, so this talks to it directly with
// parameterized SQL rather than through a generic table framework — the
// same `CREATE TABLE IF NOT EXISTS ... PRIMARY KEY (...)` /
// `INSERT INTO ... VALUES ($1, ...)` shapes and `pq.Error` unique-violation
// code the teacher's `pkg/pgutil` builds dynamically, written out for this
// one table.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/weberc2/shadowfs/pkg/pgutil"
)

// ErrEntryExists is returned on a primary-key conflict, which should never
// happen in practice since the primary key is a monotonic sequence number,
// but a wire-crossed retry against the same PostgresJournal could still hit
// it.
const ErrEntryExists = journalErr("journal entry already exists")

type journalErr string

func (e journalErr) Error() string { return string(e) }

const createTableSQL = `CREATE TABLE IF NOT EXISTS "sfs_journal" (
	"id" INTEGER NOT NULL,
	"disk_id" VARCHAR(255) NOT NULL,
	"action" VARCHAR(16) NOT NULL,
	"slot" INTEGER NOT NULL,
	"recorded_at" TIMESTAMPTZ NOT NULL,
	PRIMARY KEY ("id")
)`

const insertSQL = `INSERT INTO "sfs_journal" ` +
	`("id", "disk_id", "action", "slot", "recorded_at") ` +
	`VALUES ($1, $2, $3, $4, $5)`

const maxIDSQL = `SELECT COALESCE(MAX("id"), 0) FROM "sfs_journal"`

// entry is one row of the audit log: a commit or a restore against a named
// disk's shadow FIFO, targeting the given slot (the new slot 1 on commit,
// the source slot on restore).
type entry struct {
	id         int
	diskID     string
	action     string
	slot       int
	recordedAt time.Time
}

// PostgresJournal implements sfs.Journal against the sfs_journal table.
type PostgresJournal struct {
	DB *sql.DB

	// seq generates the primary key client-side. Postgres's own SERIAL/
	// IDENTITY column support would be the more natural fit, but this
	// journal's only two writers (RecordCommit, RecordRestore) both run
	// from the same in-process FileSystem, so a client-side counter needs
	// no round trip and no schema beyond a plain INTEGER primary key. Open
	// seeds this from the table's existing MAX(id) so a restarted process
	// picks up where a previous one left off instead of colliding with
	// rows that already exist.
	seq int
}

// Open connects to Postgres using the environment variables pgutil.OpenEnv
// expects, ensures the journal table exists, and seeds the client-side
// primary-key sequence from the table's current high-water mark so a
// restarted process doesn't collide with rows a previous process already
// wrote.
func Open(ctx context.Context) (*PostgresJournal, error) {
	db, err := pgutil.OpenEnvPing(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring journal table: %w", err)
	}
	var seq int
	if err := db.QueryRowContext(ctx, maxIDSQL).Scan(&seq); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading journal sequence high-water mark: %w", err)
	}
	return &PostgresJournal{DB: db, seq: seq}, nil
}

func (j *PostgresJournal) insert(diskID, action string, slot uint32, at time.Time) error {
	j.seq++
	e := entry{
		id:         j.seq,
		diskID:     diskID,
		action:     action,
		slot:       int(slot),
		recordedAt: at,
	}
	if _, err := j.DB.Exec(
		insertSQL, e.id, e.diskID, e.action, e.slot, e.recordedAt,
	); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("inserting journal entry: %w", ErrEntryExists)
		}
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// RecordCommit logs that diskID's live directory was folded into slot.
func (j *PostgresJournal) RecordCommit(ctx context.Context, diskID string, slot uint32) error {
	return j.insert(diskID, "commit", slot, timeFromContext(ctx))
}

// RecordRestore logs that diskID's live directory was replaced by
// fromSlot's contents.
func (j *PostgresJournal) RecordRestore(ctx context.Context, diskID string, fromSlot uint32) error {
	return j.insert(diskID, "restore", fromSlot, timeFromContext(ctx))
}

// Close releases the database connection.
func (j *PostgresJournal) Close() error {
	if err := j.DB.Close(); err != nil {
		return fmt.Errorf("closing journal database: %w", err)
	}
	return nil
}

type timeKey struct{}

// WithTime overrides the timestamp recorded for events logged against ctx,
// primarily for deterministic tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}

func timeFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}
