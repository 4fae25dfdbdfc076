package store

import (
	"context"
	"errors"
	"sync"

	"github.com/user/dialogtest/internal/script"
	"github.com/user/dialogtest/internal/transcript"
)

// Recorder persists script runs as they happen.
type Recorder struct {
	runs    *RunRepo
	entries *EntryRepo

	mu    sync.Mutex
	sinks map[string]*EntrySink
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{
		runs:    db.Runs(),
		entries: db.Entries(),
		sinks:   make(map[string]*EntrySink),
	}
}

func (r *Recorder) RunStarted(ctx context.Context, res *script.Result) (transcript.Sink, error) {
	run := &Run{
		ID:         res.RunID,
		Script:     res.Script,
		Entry:      res.Entry,
		Status:     string(res.Status),
		FailedStep: res.FailedStep,
		StartedAt:  res.StartedAt,
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	sink := r.entries.Sink(context.WithoutCancel(ctx), res.RunID)
	r.mu.Lock()
	r.sinks[res.RunID] = sink
	r.mu.Unlock()
	return sink, nil
}

func (r *Recorder) RunFinished(ctx context.Context, res *script.Result) error {
	r.mu.Lock()
	sink := r.sinks[res.RunID]
	delete(r.sinks, res.RunID)
	r.mu.Unlock()

	err := r.runs.Finish(ctx, &Run{
		ID:         res.RunID,
		Status:     string(res.Status),
		ExitCode:   res.ExitCode,
		FailedStep: res.FailedStep,
		Failure:    res.Failure,
		FinishedAt: res.FinishedAt,
	})
	if sink != nil {
		err = errors.Join(err, sink.Err())
	}
	return err
}

// Transcript renders a stored run's transcript.
func Transcript(ctx context.Context, db *DB, runID string) (string, error) {
	if _, err := db.Runs().Get(ctx, runID); err != nil {
		return "", err
	}
	entries, err := db.Entries().ListByRun(ctx, runID)
	if err != nil {
		return "", err
	}
	return transcript.Render(entries), nil
}
