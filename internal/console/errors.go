package console

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated is wrapped by writes attempted after the process ended.
	ErrTerminated = errors.New("process has terminated")
	// ErrNotStarted is wrapped by operations on a Session that was never
	// started.
	ErrNotStarted = errors.New("session not started")
)

// IOError reports a failed stream operation. It is never retried.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
