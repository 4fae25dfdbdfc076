// Package expect asserts properties of the lines a program under test
// prints, and builds failure messages from the session transcript.
package expect

import (
	"context"
	"fmt"

	"github.com/user/dialogtest/internal/console"
	"github.com/user/dialogtest/internal/platform"
)

// Session is the part of a console session the engine reads from.
type Session interface {
	NextNonEmptyLine(ctx context.Context, stream console.Stream) (string, bool, error)
	FullTranscript() string
}

// DiagnosticFunc builds a failure message from the rendered transcript.
type DiagnosticFunc func(transcript string) string

// Option adjusts a single assertion.
type Option func(*assertOptions)

type assertOptions struct {
	diagnostic bool
}

// WithoutDiagnostic leaves the transcript out of the failure message.
func WithoutDiagnostic() Option {
	return func(o *assertOptions) { o.diagnostic = false }
}

func resolve(opts []Option) assertOptions {
	o := assertOptions{diagnostic: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Engine evaluates expectations against one session.
type Engine struct {
	s Session
}

// New returns an engine reading from s.
func New(s Session) *Engine {
	return &Engine{s: s}
}

// next returns the next non-empty line of stream or a NoMoreOutputError.
func (e *Engine) next(ctx context.Context, stream console.Stream) (string, error) {
	line, ok, err := e.s.NextNonEmptyLine(ctx, stream)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &NoMoreOutputError{Stream: stream, Transcript: e.s.FullTranscript()}
	}
	return line, nil
}

// Check consumes the next non-empty stdout line and tests it.
func (e *Engine) Check(ctx context.Context, exp Expectation) (bool, error) {
	_, ok, err := e.check(ctx, exp)
	return ok, err
}

func (e *Engine) check(ctx context.Context, exp Expectation) (string, bool, error) {
	line, err := e.next(ctx, console.Stdout)
	if err != nil {
		return "", false, err
	}
	return line, exp.Test(line), nil
}

// CheckEquals reports whether the next non-empty stdout line is exactly
// expected.
func (e *Engine) CheckEquals(ctx context.Context, expected string) (bool, error) {
	return e.Check(ctx, Equals(expected))
}

// CheckContainsAll reports whether the next non-empty stdout line
// contains every substring.
func (e *Engine) CheckContainsAll(ctx context.Context, substrings ...string) (bool, error) {
	return e.Check(ctx, ContainsAll(substrings...))
}

// AssertEquals fails unless the next non-empty stdout line is exactly
// expected.
func (e *Engine) AssertEquals(ctx context.Context, expected string, opts ...Option) error {
	return e.assert(ctx, Equals(expected), resolve(opts), func(t string) string {
		return diagnostic(t, `> Last output line should end with: "`+expected+`"`+platform.LineSeparator+" >")
	})
}

// AssertContainsAll fails unless the next non-empty stdout line contains
// every substring.
func (e *Engine) AssertContainsAll(ctx context.Context, substrings []string, opts ...Option) error {
	return e.assert(ctx, ContainsAll(substrings...), resolve(opts), func(t string) string {
		return diagnostic(t, ">  ***Last output line should contain: "+quoteAll(substrings)+"***"+platform.LineSeparator+" >")
	})
}

// AssertMatches fails unless the next non-empty stdout line satisfies
// exp. When build is not nil it receives the transcript and produces the
// failure message.
func (e *Engine) AssertMatches(ctx context.Context, exp Expectation, build DiagnosticFunc) error {
	o := assertOptions{diagnostic: build != nil}
	return e.assert(ctx, exp, o, build)
}

func (e *Engine) assert(ctx context.Context, exp Expectation, o assertOptions, build DiagnosticFunc) error {
	line, ok, err := e.check(ctx, exp)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	failure := &AssertionError{Expected: exp.Description, Line: line}
	if o.diagnostic && build != nil {
		failure.Transcript = e.s.FullTranscript()
		failure.Message = build(failure.Transcript)
	} else {
		failure.Message = fmt.Sprintf("line %q does not satisfy: %s", line, exp.Description)
	}
	return failure
}

// ExpectErrorLine fails unless the next non-empty stderr line satisfies
// exp. A mismatch carries the transcript like the stdout assertions.
func (e *Engine) ExpectErrorLine(ctx context.Context, exp Expectation) error {
	line, err := e.next(ctx, console.Stderr)
	if err != nil {
		return err
	}
	if !exp.Test(line) {
		t := e.s.FullTranscript()
		return &AssertionError{
			Expected:   exp.Description,
			Line:       line,
			Transcript: t,
			Message:    diagnostic(t, "Condition not met: "+exp.Description),
		}
	}
	return nil
}

// Diagnostic returns a DiagnosticFunc that frames the transcript the same
// way the built-in assertions do, followed by condition.
func Diagnostic(condition string) DiagnosticFunc {
	return func(transcript string) string {
		return diagnostic(transcript, "> Last output line should satisfy: "+condition+platform.LineSeparator+" >")
	}
}

func diagnostic(transcript, condition string) string {
	nl := platform.LineSeparator
	return nl + banner + nl + transcript + nl + condition
}
