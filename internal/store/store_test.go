package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/dialogtest/internal/script"
	"github.com/user/dialogtest/internal/transcript"
)

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialogtest-test.db")
	database, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	})
	return database, path
}

func assertTableExists(t *testing.T, conn *sql.DB, table string) {
	t.Helper()
	var count int
	err := conn.QueryRow(`SELECT count(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master error: %v", err)
	}
	if count != 1 {
		t.Fatalf("table %q not found", table)
	}
}

func TestOpenCreatesDBFileAndRunsMigrations(t *testing.T) {
	database, path := openTestDB(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected DB file at %q: %v", path, err)
	}
	assertTableExists(t, database.SQL(), "_meta")
	assertTableExists(t, database.SQL(), "runs")
	assertTableExists(t, database.SQL(), "transcript_entries")
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	database, _ := openTestDB(t)

	if err := RunMigrations(context.Background(), database.SQL()); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
	var version string
	if err := database.SQL().QueryRow(`SELECT value FROM _meta WHERE key='schema_version'`).Scan(&version); err != nil {
		t.Fatalf("read schema version error = %v", err)
	}
	if version != "2" {
		t.Fatalf("schema version = %s, want 2", version)
	}
}

func TestMigrationsRejectNewerSchema(t *testing.T) {
	database, _ := openTestDB(t)

	if _, err := database.SQL().Exec(`UPDATE _meta SET value = '99' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("bump schema version error = %v", err)
	}
	err := RunMigrations(context.Background(), database.SQL())
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Fatalf("RunMigrations() error = %v, want newer-schema error", err)
	}
}

func TestOpenInMemory(t *testing.T) {
	database, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer database.Close()
	assertTableExists(t, database.SQL(), "runs")
}

func TestRunRepoLifecycle(t *testing.T) {
	database, _ := openTestDB(t)
	runs := database.Runs()
	ctx := context.Background()

	run := &Run{Script: "greeter", Entry: "Greeter", FailedStep: -1}
	if err := runs.Create(ctx, run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if run.ID == "" || run.Status != "running" {
		t.Fatalf("created run = %+v", run)
	}

	code := 2
	run.Status = "failed"
	run.ExitCode = &code
	run.FailedStep = 3
	run.Failure = "step 4 (expect): mismatch"
	if err := runs.Finish(ctx, run); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := runs.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != "failed" || got.ExitCode == nil || *got.ExitCode != 2 || got.FailedStep != 3 {
		t.Fatalf("Get() = %+v", got)
	}
	if got.FinishedAt.IsZero() || got.Failure != run.Failure {
		t.Fatalf("Get() = %+v", got)
	}
}

func TestRunRepoNotFound(t *testing.T) {
	database, _ := openTestDB(t)
	runs := database.Runs()
	ctx := context.Background()

	if _, err := runs.Get(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Get() error = %v, want ErrRunNotFound", err)
	}
	if err := runs.Finish(ctx, &Run{ID: "missing", Status: "passed"}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Finish() error = %v, want ErrRunNotFound", err)
	}
	if err := runs.Delete(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Delete() error = %v, want ErrRunNotFound", err)
	}
}

func TestRunRepoListFiltersAndOrders(t *testing.T) {
	database, _ := openTestDB(t)
	runs := database.Runs()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, tc := range []struct{ script, status string }{
		{"a", "passed"}, {"b", "failed"}, {"a", "failed"},
	} {
		run := &Run{Script: tc.script, Status: tc.status, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := runs.Create(ctx, run); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := runs.List(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].Script != "a" || all[0].Status != "failed" {
		t.Fatalf("List() = %+v", all)
	}

	onlyA, err := runs.List(ctx, RunFilter{Script: "a"})
	if err != nil || len(onlyA) != 2 {
		t.Fatalf("List(script=a) = %d, %v", len(onlyA), err)
	}
	failed, err := runs.List(ctx, RunFilter{Status: "failed", Limit: 1})
	if err != nil || len(failed) != 1 || failed[0].Script != "a" {
		t.Fatalf("List(status=failed, limit=1) = %+v, %v", failed, err)
	}
}

func TestEntryRepoRoundTripAndCascade(t *testing.T) {
	database, _ := openTestDB(t)
	ctx := context.Background()
	run := &Run{Script: "greeter"}
	if err := database.Runs().Create(ctx, run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var tr transcript.Transcript
	sink := database.Entries().Sink(ctx, run.ID)
	tr.Attach(sink)
	tr.Append(transcript.Out, "Enter name:")
	tr.Append(transcript.In, "Alice")
	tr.Append(transcript.Err, "warning")
	if err := sink.Err(); err != nil {
		t.Fatalf("sink error = %v", err)
	}

	entries, err := database.Entries().ListByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if got, want := transcript.Render(entries), tr.Render(); got != want {
		t.Fatalf("stored transcript = %q, want %q", got, want)
	}

	if err := database.Runs().Delete(ctx, run.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	entries, err = database.Entries().ListByRun(ctx, run.ID)
	if err != nil || len(entries) != 0 {
		t.Fatalf("entries after delete = %d, %v", len(entries), err)
	}
}

func TestEntrySinkKeepsFirstError(t *testing.T) {
	database, _ := openTestDB(t)
	sink := database.Entries().Sink(context.Background(), "no-such-run")

	sink.Record(transcript.Entry{Seq: 1, Direction: transcript.Out, Text: "x"})
	if err := sink.Err(); err == nil {
		t.Fatal("expected foreign key failure")
	}
}

func TestRecorderPersistsRun(t *testing.T) {
	database, _ := openTestDB(t)
	rec := NewRecorder(database)
	ctx := context.Background()

	res := &script.Result{
		RunID:      NewID(),
		Script:     "greeter",
		Entry:      "Greeter",
		Status:     script.StatusRunning,
		FailedStep: -1,
		StartedAt:  time.Now().UTC(),
	}
	sink, err := rec.RunStarted(ctx, res)
	if err != nil {
		t.Fatalf("RunStarted() error = %v", err)
	}
	sink.Record(transcript.Entry{Seq: 1, Direction: transcript.Out, Text: "Enter name:", Time: time.Now()})
	sink.Record(transcript.Entry{Seq: 2, Direction: transcript.In, Text: "Alice", Time: time.Now()})

	code := 0
	res.Status = script.StatusPassed
	res.ExitCode = &code
	res.FinishedAt = time.Now().UTC()
	if err := rec.RunFinished(ctx, res); err != nil {
		t.Fatalf("RunFinished() error = %v", err)
	}

	run, err := database.Runs().Get(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.Status != "passed" || run.ExitCode == nil || *run.ExitCode != 0 {
		t.Fatalf("stored run = %+v", run)
	}
	text, err := Transcript(ctx, database, res.RunID)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if !strings.Contains(text, "> in:  Alice") {
		t.Fatalf("Transcript() = %q", text)
	}
	if _, err := Transcript(ctx, database, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Transcript(missing) error = %v", err)
	}
}
