// Package store persists runs and their transcripts in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// DB is the run history. Several processes may open the same file.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the database at path and migrates it. ":memory:"
// gives a private in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if path != memoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range pragmas(path) {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := RunMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func pragmas(path string) []string {
	p := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != memoryPath {
		p = append(p, "PRAGMA journal_mode = WAL")
	}
	return p
}

// SQL exposes the underlying handle.
func (d *DB) SQL() *sql.DB {
	return d.conn
}

// Runs returns a run repository over d.
func (d *DB) Runs() *RunRepo {
	return NewRunRepo(d.conn)
}

// Entries returns a transcript entry repository over d.
func (d *DB) Entries() *EntryRepo {
	return NewEntryRepo(d.conn)
}

func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
