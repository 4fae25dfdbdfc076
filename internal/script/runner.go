package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/dialogtest/internal/console"
	"github.com/user/dialogtest/internal/expect"
	"github.com/user/dialogtest/internal/launcher"
	"github.com/user/dialogtest/internal/transcript"
)

// Observer follows runs as they happen. RunStarted may return a sink that
// receives every transcript entry of the run.
type Observer interface {
	RunStarted(ctx context.Context, res *Result) (transcript.Sink, error)
	RunFinished(ctx context.Context, res *Result) error
}

// Observers fans out to several observers.
func Observers(obs ...Observer) Observer {
	return multiObserver(obs)
}

type multiObserver []Observer

func (m multiObserver) RunStarted(ctx context.Context, res *Result) (transcript.Sink, error) {
	var sinks []transcript.Sink
	for _, o := range m {
		sink, err := o.RunStarted(ctx, res)
		if err != nil {
			return nil, err
		}
		if sink != nil {
			sinks = append(sinks, sink)
		}
	}
	return transcript.SinkFunc(func(e transcript.Entry) {
		for _, s := range sinks {
			s.Record(e)
		}
	}), nil
}

func (m multiObserver) RunFinished(ctx context.Context, res *Result) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.RunFinished(ctx, res))
	}
	return errors.Join(errs...)
}

// StepError reports the step a run stopped at.
type StepError struct {
	Index  int
	Action string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ExitCodeError reports an unexpected exit code.
type ExitCodeError struct {
	Got, Want int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d, want %d", e.Got, e.Want)
}

// Runner executes scripts.
type Runner struct {
	Launcher launcher.Launcher
	Logger   *slog.Logger
	// Options are applied to every console session.
	Options  []console.Option
	Observer Observer
	// Timeout applies to scripts that set none.
	Timeout time.Duration
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Run executes sc and reports the outcome. Dialog failures are described
// by the Result; the error is reserved for observer failures.
func (r *Runner) Run(ctx context.Context, sc *Script) (*Result, error) {
	if r.Launcher == nil {
		return nil, errors.New("runner has no launcher")
	}
	res := &Result{
		RunID:      uuid.NewString(),
		Script:     sc.Name,
		Entry:      sc.Entry,
		Status:     StatusRunning,
		FailedStep: -1,
		StartedAt:  time.Now().UTC(),
	}
	log := r.logger().With("script", sc.Name, "run", res.RunID)

	opts := append([]console.Option{console.WithLogger(log)}, r.Options...)
	if r.Observer != nil {
		sink, err := r.Observer.RunStarted(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("start run %s: %w", res.RunID, err)
		}
		if sink != nil {
			opts = append(opts, console.WithSinks(sink))
		}
	}
	timeout := sc.Timeout
	if timeout == 0 {
		timeout = r.Timeout
	}
	if timeout > 0 {
		opts = append(opts, console.WithDefaultTimeout(timeout))
	}

	log.Info("run started", "entry", sc.Entry)
	s, err := console.Start(ctx, r.Launcher, sc.Entry, sc.Args, opts...)
	if err != nil {
		res.Status = StatusError
		res.Failure = err.Error()
	} else {
		r.drive(ctx, s, sc, res)
	}
	res.FinishedAt = time.Now().UTC()

	level := slog.LevelInfo
	if !res.Passed() {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "run finished", "status", res.Status, "failure", res.Failure)

	if r.Observer != nil {
		if err := r.Observer.RunFinished(ctx, res); err != nil {
			return res, fmt.Errorf("finish run %s: %w", res.RunID, err)
		}
	}
	return res, nil
}

func (r *Runner) drive(ctx context.Context, s *console.Session, sc *Script, res *Result) {
	engine := expect.New(s)
	for i, step := range sc.Steps {
		if err := r.step(ctx, s, engine, step, res); err != nil {
			res.FailedStep = i
			res.Failure = (&StepError{Index: i, Action: step.Action(), Err: err}).Error()
			res.Status = classify(err)
			break
		}
	}
	if res.Status == StatusRunning {
		res.Status = StatusPassed
	}
	if !res.Passed() {
		_ = s.Kill()
	}
	if res.ExitCode == nil && s.State() == console.Exited {
		if code, err := s.WaitForExitCode(ctx); err == nil {
			res.ExitCode = &code
		}
	}
	_ = s.Close()
	res.Transcript = s.FullTranscript()
}

func (r *Runner) step(ctx context.Context, s *console.Session, e *expect.Engine, step Step, res *Result) error {
	var opts []expect.Option
	if step.Quiet {
		opts = append(opts, expect.WithoutDiagnostic())
	}
	matches := func(exp expect.Expectation) error {
		var build expect.DiagnosticFunc
		if !step.Quiet {
			build = expect.Diagnostic(exp.Description)
		}
		return e.AssertMatches(ctx, exp, build)
	}

	switch {
	case step.Expect != nil:
		return e.AssertEquals(ctx, *step.Expect, opts...)
	case step.ExpectContains != nil:
		return e.AssertContainsAll(ctx, step.ExpectContains, opts...)
	case step.ExpectPrefix != "":
		return matches(expect.HasPrefix(step.ExpectPrefix))
	case step.ExpectSuffix != "":
		return matches(expect.HasSuffix(step.ExpectSuffix))
	case step.ExpectRegex != "":
		exp, err := expect.Regexp(step.ExpectRegex)
		if err != nil {
			return err
		}
		return matches(exp)
	case step.ExpectError != "":
		return e.ExpectErrorLine(ctx, expect.ContainsAll(step.ExpectError))
	case step.SkipUntil != "":
		want := step.SkipUntil
		return s.SkipUntil(ctx, func(line string) bool { return strings.Contains(line, want) })
	case step.Send != nil:
		return s.Send(*step.Send)
	case step.SendLine != nil:
		return s.SendLine(*step.SendLine)
	case step.ReadAll:
		_, err := s.ReadAllOutput(ctx)
		return err
	case step.ReadErrors:
		_, err := s.ReadAllError(ctx)
		return err
	case step.Kill:
		return s.Kill()
	case step.ExitCode != nil:
		code, err := s.WaitForExitCode(ctx)
		if err != nil {
			return err
		}
		res.ExitCode = &code
		if code != *step.ExitCode {
			return &ExitCodeError{Got: code, Want: *step.ExitCode}
		}
		return nil
	}
	return fmt.Errorf("%w: step has no action", ErrInvalidScript)
}

func classify(err error) Status {
	var (
		assertion *expect.AssertionError
		noMore    *expect.NoMoreOutputError
		exitCode  *ExitCodeError
		ioErr     *console.IOError
	)
	switch {
	case errors.As(err, &assertion), errors.As(err, &noMore), errors.As(err, &exitCode):
		return StatusFailed
	case errors.As(err, &ioErr) && errors.Is(err, console.ErrTerminated):
		// The program quit before reading what the dialog sends.
		return StatusFailed
	default:
		return StatusError
	}
}
