package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/user/dialogtest/internal/transcript"
)

type EntryRepo struct {
	db *sql.DB
}

func NewEntryRepo(db *sql.DB) *EntryRepo {
	return &EntryRepo{db: db}
}

func (r *EntryRepo) Append(ctx context.Context, runID string, e transcript.Entry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO transcript_entries (run_id, seq, direction, text, recorded_at)
VALUES (?, ?, ?, ?, ?)
`, runID, e.Seq, e.Direction.String(), e.Text, formatTimestamp(e.Time))
	if err != nil {
		return fmt.Errorf("append transcript entry %d: %w", e.Seq, err)
	}
	return nil
}

// ListByRun returns a run's entries in sequence order.
func (r *EntryRepo) ListByRun(ctx context.Context, runID string) ([]transcript.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT seq, direction, text, recorded_at
FROM transcript_entries
WHERE run_id = ?
ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list transcript entries: %w", err)
	}
	defer rows.Close()

	var out []transcript.Entry
	for rows.Next() {
		var e transcript.Entry
		var dirRaw, recordedRaw string
		if err := rows.Scan(&e.Seq, &dirRaw, &e.Text, &recordedRaw); err != nil {
			return nil, fmt.Errorf("scan transcript entry: %w", err)
		}
		dir, ok := transcript.ParseDirection(dirRaw)
		if !ok {
			return nil, fmt.Errorf("unknown direction %q in entry %d", dirRaw, e.Seq)
		}
		e.Direction = dir
		if e.Time, err = parseTimestamp(recordedRaw); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript entries: %w", err)
	}
	return out, nil
}

// Sink returns a transcript.Sink that appends to runID. The first write
// failure is kept and reported by Err; later entries are dropped.
func (r *EntryRepo) Sink(ctx context.Context, runID string) *EntrySink {
	return &EntrySink{ctx: ctx, repo: r, runID: runID}
}

type EntrySink struct {
	ctx   context.Context
	repo  *EntryRepo
	runID string

	mu  sync.Mutex
	err error
}

func (s *EntrySink) Record(e transcript.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = s.repo.Append(s.ctx, s.runID, e)
}

func (s *EntrySink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
