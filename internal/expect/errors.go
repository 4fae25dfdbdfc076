package expect

import (
	"github.com/user/dialogtest/internal/console"
	"github.com/user/dialogtest/internal/platform"
)

const banner = "> ***Error producing console log***"

// NoMoreOutputError reports that an expectation needed a line but the
// stream had already ended. It is always a failure, never a false result.
type NoMoreOutputError struct {
	Stream     console.Stream
	Transcript string
}

func (e *NoMoreOutputError) Error() string {
	nl := platform.LineSeparator
	if e.Stream == console.Stderr {
		return "Line is null: stderr ended" + nl + e.Transcript
	}
	return nl + banner + nl + e.Transcript + nl + "***> Last output line is empty ***"
}

// AssertionError reports a line that did not satisfy an expectation.
type AssertionError struct {
	Expected string
	Line     string
	// Transcript is empty when the diagnostic was suppressed.
	Transcript string
	Message    string
}

func (e *AssertionError) Error() string { return e.Message }
