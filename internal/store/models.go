package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("run not found")

type Run struct {
	ID         string    `json:"id"`
	Script     string    `json:"script"`
	Entry      string    `json:"entry"`
	Status     string    `json:"status"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	FailedStep int       `json:"failed_step"`
	Failure    string    `json:"failure,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

type RunFilter struct {
	Script string
	Status string
	Limit  int
	Offset int
}

func NewID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = nowUTC()
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func formatTimestampOrEmpty(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return formatTimestamp(ts)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return ts, nil
}

func parseOptionalTimestamp(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return parseTimestamp(v)
}
