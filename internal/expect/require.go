package expect

import (
	"context"
	"testing"
)

// Required turns every failed expectation into a fatal test failure.
type Required struct {
	tb testing.TB
	e  *Engine
}

// Require wraps e for use inside a Go test.
func Require(tb testing.TB, e *Engine) *Required {
	return &Required{tb: tb, e: e}
}

func (r *Required) fatal(err error) {
	r.tb.Helper()
	if err != nil {
		r.tb.Fatal(err)
	}
}

func (r *Required) AssertEquals(ctx context.Context, expected string, opts ...Option) {
	r.tb.Helper()
	r.fatal(r.e.AssertEquals(ctx, expected, opts...))
}

func (r *Required) AssertContainsAll(ctx context.Context, substrings []string, opts ...Option) {
	r.tb.Helper()
	r.fatal(r.e.AssertContainsAll(ctx, substrings, opts...))
}

func (r *Required) AssertMatches(ctx context.Context, exp Expectation, build DiagnosticFunc) {
	r.tb.Helper()
	r.fatal(r.e.AssertMatches(ctx, exp, build))
}

func (r *Required) ExpectErrorLine(ctx context.Context, exp Expectation) {
	r.tb.Helper()
	r.fatal(r.e.ExpectErrorLine(ctx, exp))
}
