package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create inserts run, assigning an id and start time when they are unset.
func (r *RunRepo) Create(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("run is required")
	}
	run.Script = strings.TrimSpace(run.Script)
	if run.Script == "" {
		return fmt.Errorf("run script is required")
	}
	if run.ID == "" {
		run.ID = NewID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = nowUTC()
	}
	if run.Status == "" {
		run.Status = "running"
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO runs (id, script, entry, status, exit_code, failed_step, failure, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.ID, run.Script, run.Entry, run.Status, nullableInt(run.ExitCode), run.FailedStep, run.Failure,
		formatTimestamp(run.StartedAt), formatTimestampOrEmpty(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Finish records the outcome of a run.
func (r *RunRepo) Finish(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = nowUTC()
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE runs
SET status = ?, exit_code = ?, failed_step = ?, failure = ?, finished_at = ?
WHERE id = ?
`, run.Status, nullableInt(run.ExitCode), run.FailedStep, run.Failure, formatTimestamp(run.FinishedAt), run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

func (r *RunRepo) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, script, entry, status, exit_code, failed_step, failure, started_at, finished_at
FROM runs
WHERE id = ?
`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns runs newest first.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `
SELECT id, script, entry, status, exit_code, failed_step, failure, started_at, finished_at
FROM runs
WHERE 1 = 1`
	var args []any
	if s := strings.TrimSpace(filter.Script); s != "" {
		query += ` AND script = ?`
		args = append(args, s)
	}
	if s := strings.TrimSpace(filter.Status); s != "" {
		query += ` AND status = ?`
		args = append(args, s)
	}
	query += ` ORDER BY started_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Delete removes a run and its transcript.
func (r *RunRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var exitCode sql.NullInt64
	var startedRaw, finishedRaw string
	if err := row.Scan(&run.ID, &run.Script, &run.Entry, &run.Status, &exitCode, &run.FailedStep, &run.Failure, &startedRaw, &finishedRaw); err != nil {
		return nil, err
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	var err error
	if run.StartedAt, err = parseTimestamp(startedRaw); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseOptionalTimestamp(finishedRaw); err != nil {
		return nil, err
	}
	return &run, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
