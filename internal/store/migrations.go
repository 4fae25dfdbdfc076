package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

type migration struct {
	version int
	name    string
	sql     string
}

// migrations are applied in order; version n sits at index n-1.
var migrations = []migration{
	{
		version: 1,
		name:    "create run tables",
		sql: `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	script TEXT NOT NULL,
	entry TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	exit_code INTEGER,
	failed_step INTEGER NOT NULL DEFAULT -1,
	failure TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS transcript_entries (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	direction TEXT NOT NULL,
	text TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	PRIMARY KEY (run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`,
	},
	{
		version: 2,
		name:    "index runs by script and start time",
		sql: `
CREATE INDEX IF NOT EXISTS idx_runs_script ON runs(script);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`,
	},
}

// RunMigrations brings the schema up to the latest version inside one
// transaction. A database written by a newer build is rejected.
func RunMigrations(ctx context.Context, conn *sql.DB) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := schemaVersion(ctx, tx)
	if err != nil {
		return err
	}
	latest := migrations[len(migrations)-1].version
	if current > latest {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, latest)
	}

	for _, m := range migrations[current:] {
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("failed migration %03d (%s): %w", m.version, m.name, err)
		}
		if err := setSchemaVersion(ctx, tx, m.version); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// schemaVersion reads the recorded version, creating _meta at version 0.
func schemaVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS _meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
INSERT OR IGNORE INTO _meta (key, value) VALUES ('schema_version', '0');
`); err != nil {
		return 0, fmt.Errorf("failed to ensure _meta table: %w", err)
	}

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT value FROM _meta WHERE key = 'schema_version'`).Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid schema version %q", raw)
	}
	return v, nil
}

func setSchemaVersion(ctx context.Context, tx *sql.Tx, v int) error {
	if _, err := tx.ExecContext(ctx, `UPDATE _meta SET value = ? WHERE key = 'schema_version'`, strconv.Itoa(v)); err != nil {
		return fmt.Errorf("failed to set schema version %03d: %w", v, err)
	}
	return nil
}
