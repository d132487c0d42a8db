// Package pgutil bootstraps the Postgres connection pkg/journal writes its
// audit log through. Grounded on the teacher's pkg/pgutil/open.go.
package pgutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// maxOpenConns caps the journal's connection pool. sfsctl mounts a disk,
// runs one commit/restore, and exits, and the long-running mount path
// writes at most one journal row per commit or restore call, so there's
// never a burst of concurrent journal writers to size a pool around.
const maxOpenConns = 4

// OpenEnv opens a Postgres connection using SFS_PG_* environment variables,
// falling back to local-dev defaults for anything unset.
func OpenEnv() (*sql.DB, error) {
	db, err := sql.Open(
		"postgres",
		fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("SFS_PG_HOST", "localhost"),
			getEnv("SFS_PG_PORT", "5432"),
			getEnv("SFS_PG_USER", "postgres"),
			getEnv("SFS_PG_PASS", ""),
			getEnv("SFS_PG_DB_NAME", "postgres"),
			getEnv("SFS_PG_SSL_MODE", "disable"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// OpenEnvPing opens a connection and verifies it's reachable before
// returning, so a misconfigured journal fails fast at mount time (a
// deferred connection error) rather than silently on the first
// RecordCommit/RecordRestore call, where SPEC_FULL.md §4.13's best-effort
// policy would otherwise swallow it into a warning log line.
func OpenEnvPing(ctx context.Context) (*sql.DB, error) {
	db, err := OpenEnv()
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres database: %w", err)
	}

	return db, nil
}

func getEnv(env, def string) string {
	x := os.Getenv(env)
	if x == "" {
		return def
	}
	return x
}
