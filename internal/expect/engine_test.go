package expect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/user/dialogtest/internal/console"
	"github.com/user/dialogtest/internal/platform"
)

func TestCheckEqualsIsExact(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Hello, Alice", true},
		{"Hello, Alice.", false},
		{"hello, alice", false},
		{" Hello, Alice", false},
		{"Hello, Alice ", false},
		{"Hello, Alice\t", false},
	}
	for _, tt := range tests {
		e := New(&scripted{out: []string{"", tt.line}})
		got, err := e.CheckEquals(context.Background(), "Hello, Alice")
		if err != nil {
			t.Fatalf("CheckEquals() error = %v", err)
		}
		if got != tt.want {
			t.Fatalf("CheckEquals() on %q = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestCheckContainsAllIsOrderFree(t *testing.T) {
	e := New(&scripted{out: []string{"Hello, Alice", "Hello, Alice"}})

	ok, err := e.CheckContainsAll(context.Background(), "Alice", "Hello")
	if err != nil || !ok {
		t.Fatalf("CheckContainsAll() = %v, %v", ok, err)
	}
	ok, err = e.CheckContainsAll(context.Background(), "Hello", "Bob")
	if err != nil || ok {
		t.Fatalf("CheckContainsAll() with missing substring = %v, %v", ok, err)
	}
}

func TestCheckAtEndOfStreamIsHardFailure(t *testing.T) {
	s := &scripted{out: []string{"only"}}
	e := New(s)
	if err := e.AssertEquals(context.Background(), "only"); err != nil {
		t.Fatalf("AssertEquals() error = %v", err)
	}

	ok, err := e.CheckEquals(context.Background(), "more")
	if ok {
		t.Fatal("CheckEquals() = true at end of stream")
	}
	var noMore *NoMoreOutputError
	if !errors.As(err, &noMore) {
		t.Fatalf("CheckEquals() error = %v, want *NoMoreOutputError", err)
	}
	if noMore.Transcript != "> out: only" {
		t.Fatalf("Transcript = %q", noMore.Transcript)
	}
	if !strings.Contains(err.Error(), "Last output line is empty") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestAssertEqualsDiagnostic(t *testing.T) {
	e := New(&scripted{out: []string{"Enter name:", "Hi, Alice"}})
	ctx := context.Background()
	if err := e.AssertEquals(ctx, "Enter name:"); err != nil {
		t.Fatalf("AssertEquals() error = %v", err)
	}

	err := e.AssertEquals(ctx, "Hello, Alice")
	var failed *AssertionError
	if !errors.As(err, &failed) {
		t.Fatalf("AssertEquals() error = %v, want *AssertionError", err)
	}
	nl := platform.LineSeparator
	want := nl + "> ***Error producing console log***" + nl +
		"> out: Enter name:" + nl + "> out: Hi, Alice" + nl +
		`> Last output line should end with: "Hello, Alice"` + nl + " >"
	if failed.Message != want {
		t.Fatalf("Message = %q, want %q", failed.Message, want)
	}
	if failed.Line != "Hi, Alice" {
		t.Fatalf("Line = %q", failed.Line)
	}
}

func TestAssertWithoutDiagnostic(t *testing.T) {
	e := New(&scripted{out: []string{"secret output"}})

	err := e.AssertEquals(context.Background(), "x", WithoutDiagnostic())
	var failed *AssertionError
	if !errors.As(err, &failed) {
		t.Fatalf("AssertEquals() error = %v, want *AssertionError", err)
	}
	if failed.Transcript != "" || strings.Contains(failed.Message, "> out:") {
		t.Fatalf("diagnostic leaked into %q", failed.Message)
	}
}

func TestAssertContainsAllDiagnostic(t *testing.T) {
	e := New(&scripted{out: []string{"Hello, Bob"}})

	err := e.AssertContainsAll(context.Background(), []string{"Hello", "Alice"})
	if err == nil {
		t.Fatal("expected failure")
	}
	nl := platform.LineSeparator
	wantTail := nl + `>  ***Last output line should contain: "Hello""Alice"***` + nl + " >"
	if !strings.HasSuffix(err.Error(), wantTail) {
		t.Fatalf("message = %q, want suffix %q", err.Error(), wantTail)
	}
}

func TestAssertMatchesCustomDiagnostic(t *testing.T) {
	e := New(&scripted{out: []string{"42"}})

	err := e.AssertMatches(context.Background(), Equals("43"), func(transcript string) string {
		return "wanted 43 after:" + transcript
	})
	if err == nil || err.Error() != "wanted 43 after:> out: 42" {
		t.Fatalf("AssertMatches() error = %v", err)
	}

	e = New(&scripted{out: []string{"43"}})
	if err := e.AssertMatches(context.Background(), Equals("43"), nil); err != nil {
		t.Fatalf("AssertMatches() error = %v", err)
	}
}

func TestExpectErrorLine(t *testing.T) {
	e := New(&scripted{err: []string{"", "warning: low disk", "fatal"}})
	ctx := context.Background()

	if err := e.ExpectErrorLine(ctx, HasPrefix("warning")); err != nil {
		t.Fatalf("ExpectErrorLine() error = %v", err)
	}
	err := e.ExpectErrorLine(ctx, HasPrefix("warning"))
	var failure *AssertionError
	if !errors.As(err, &failure) {
		t.Fatalf("ExpectErrorLine() mismatch error = %v, want *AssertionError", err)
	}
	if failure.Line != "fatal" {
		t.Fatalf("AssertionError.Line = %q, want %q", failure.Line, "fatal")
	}
	for _, want := range []string{"> ! warning: low disk", "> ! fatal", `Condition not met: starts with "warning"`} {
		if !strings.Contains(failure.Message, want) {
			t.Fatalf("ExpectErrorLine() message missing %q:\n%s", want, failure.Message)
		}
	}
	if !strings.Contains(failure.Transcript, "> ! fatal") {
		t.Fatalf("AssertionError.Transcript = %q", failure.Transcript)
	}
	var noMore *NoMoreOutputError
	if err := e.ExpectErrorLine(ctx, HasPrefix("x")); !errors.As(err, &noMore) || noMore.Stream != console.Stderr {
		t.Fatalf("ExpectErrorLine() at end = %v", err)
	}
}

type erroring struct{ scripted }

func (*erroring) NextNonEmptyLine(context.Context, console.Stream) (string, bool, error) {
	return "", false, context.DeadlineExceeded
}

func TestReadErrorsPassThrough(t *testing.T) {
	e := New(&erroring{})
	if _, err := e.Check(context.Background(), Equals("x")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Check() error = %v", err)
	}
}

type recordingTB struct {
	testing.TB
	fatal []any
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatal(args ...any) { r.fatal = append(r.fatal, args...) }

func TestRequire(t *testing.T) {
	tb := &recordingTB{TB: t}
	r := Require(tb, New(&scripted{out: []string{"a", "b"}}))
	ctx := context.Background()

	r.AssertEquals(ctx, "a")
	if len(tb.fatal) != 0 {
		t.Fatalf("unexpected failure: %v", tb.fatal)
	}
	r.AssertEquals(ctx, "c")
	if len(tb.fatal) != 1 {
		t.Fatalf("Fatal called %d times, want 1", len(tb.fatal))
	}
	if _, ok := tb.fatal[0].(*AssertionError); !ok {
		t.Fatalf("Fatal arg = %T, want *AssertionError", tb.fatal[0])
	}
}

func TestDiagnosticBuilder(t *testing.T) {
	e := New(&scripted{out: []string{"abc"}})

	err := e.AssertMatches(context.Background(), HasPrefix("x"), Diagnostic(HasPrefix("x").Description))
	nl := platform.LineSeparator
	want := nl + "> ***Error producing console log***" + nl + "> out: abc" + nl +
		`> Last output line should satisfy: starts with "x"` + nl + " >"
	if err == nil || err.Error() != want {
		t.Fatalf("AssertMatches() error = %q, want %q", err, want)
	}
}
