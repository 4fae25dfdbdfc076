package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/dialogtest/internal/launcher"
	"github.com/user/dialogtest/internal/platform"
	"github.com/user/dialogtest/internal/transcript"
)

// Stream selects one of the program's output streams.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

func (s Stream) direction() transcript.Direction {
	if s == Stderr {
		return transcript.Err
	}
	return transcript.Out
}

// State is the lifecycle position of a Session.
type State int

const (
	NotStarted State = iota
	Running
	Exited
	Killed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// Session is one program under test plus its transcript.
type Session struct {
	proc       *launcher.Process
	entryPoint string
	transcript *transcript.Transcript
	logger     *slog.Logger
	timeout    time.Duration
	clean      func(string) string

	stdout *lineQueue
	stderr *lineQueue

	mu        sync.Mutex
	killed    bool
	closeOnce sync.Once
}

// Start launches entryPoint through l and returns a running Session. A
// spawn failure is returned as *launcher.LaunchError. The process is
// killed if ctx is cancelled.
func Start(ctx context.Context, l launcher.Launcher, entryPoint string, args []string, opts ...Option) (*Session, error) {
	cfg := resolveOptions(opts)

	proc, err := l.Launch(ctx, entryPoint, args...)
	if err != nil {
		var launchErr *launcher.LaunchError
		if !errors.As(err, &launchErr) {
			err = &launcher.LaunchError{EntryPoint: entryPoint, Err: err}
		}
		return nil, err
	}

	s := &Session{
		proc:       proc,
		entryPoint: entryPoint,
		transcript: transcript.New(cfg.sinks...),
		logger:     cfg.logger,
		timeout:    cfg.timeout,
		clean:      cfg.clean,
		stdout:     newLineQueue(proc.Stdout, cfg.queueSize),
		stderr:     newLineQueue(proc.Stderr, cfg.queueSize),
	}
	if cfg.echo {
		s.transcript.Attach(transcript.SinkFunc(func(e transcript.Entry) {
			s.logger.Info(e.String(), "entry", entryPoint, "seq", e.Seq)
		}))
	}
	s.logger.Debug("process started", "entry", entryPoint, "pid", proc.Pid(), "args", proc.Args())
	return s, nil
}

// EntryPoint returns the entry point the session was started with.
func (s *Session) EntryPoint() string { return s.entryPoint }

// Pid returns the child's process id, or -1 if not started.
func (s *Session) Pid() int {
	if s.proc == nil {
		return -1
	}
	return s.proc.Pid()
}

// State reports the lifecycle state without blocking.
func (s *Session) State() State {
	if s.proc == nil {
		return NotStarted
	}
	s.mu.Lock()
	killed := s.killed
	s.mu.Unlock()
	switch {
	case killed:
		return Killed
	case s.proc.Exited():
		return Exited
	default:
		return Running
	}
}

// Transcript returns the live transcript.
func (s *Session) Transcript() *transcript.Transcript {
	if s.transcript == nil {
		return transcript.New()
	}
	return s.transcript
}

// FullTranscript renders every exchanged line in call order.
func (s *Session) FullTranscript() string {
	return s.Transcript().Render()
}

func (s *Session) queue(stream Stream) *lineQueue {
	if stream == Stderr {
		return s.stderr
	}
	return s.stdout
}

// withTimeout applies the default timeout when ctx carries no deadline.
func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// readLine consumes one line and records it.
func (s *Session) readLine(ctx context.Context, stream Stream) (string, bool, error) {
	if s.proc == nil {
		return "", false, &IOError{Op: "read " + stream.String(), Err: ErrNotStarted}
	}
	line, ok, err := s.queue(stream).next(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", false, fmt.Errorf("read %s: %w", stream, err)
		}
		return "", false, &IOError{Op: "read " + stream.String(), Err: err}
	}
	if !ok {
		return "", false, nil
	}
	if s.clean != nil {
		line = s.clean(line)
	}
	s.transcript.Append(stream.direction(), line)
	return line, true, nil
}

func (s *Session) readAll(ctx context.Context, stream Stream) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var lines []string
	for {
		line, ok, err := s.readLine(ctx, stream)
		if err != nil {
			return lines, err
		}
		if !ok {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// ReadAllOutput consumes stdout until end-of-stream and returns the lines.
// It does not return while the program keeps stdout open.
func (s *Session) ReadAllOutput(ctx context.Context) ([]string, error) {
	return s.readAll(ctx, Stdout)
}

// ReadAllError consumes stderr until end-of-stream and returns the lines.
func (s *Session) ReadAllError(ctx context.Context) ([]string, error) {
	return s.readAll(ctx, Stderr)
}

// NextNonEmptyLine consumes lines from stream until one is not empty.
// Blank lines are recorded but skipped. ok is false when the stream ended
// first.
func (s *Session) NextNonEmptyLine(ctx context.Context, stream Stream) (line string, ok bool, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for {
		line, ok, err := s.readLine(ctx, stream)
		if err != nil || !ok {
			return "", false, err
		}
		if len(line) > 0 {
			return line, true, nil
		}
	}
}

// SkipUntil consumes stdout lines until match accepts one, which is
// consumed too. Reaching end-of-stream first is not an error.
func (s *Session) SkipUntil(ctx context.Context, match func(line string) bool) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for {
		line, ok, err := s.readLine(ctx, Stdout)
		if err != nil || !ok {
			return err
		}
		if match(line) {
			return nil
		}
	}
}

// Send writes text to the program's stdin as is. The trimmed text is
// recorded. Sending to a process that has ended fails with an IOError
// wrapping ErrTerminated.
func (s *Session) Send(text string) error {
	const op = "write stdin"
	switch s.State() {
	case NotStarted:
		return &IOError{Op: op, Err: ErrNotStarted}
	case Exited, Killed:
		return &IOError{Op: op, Err: ErrTerminated}
	}

	s.transcript.Append(transcript.In, strings.TrimSpace(text))
	if _, err := io.WriteString(s.proc.Stdin, text); err != nil {
		return &IOError{Op: op, Err: err}
	}
	return nil
}

// SendLine sends text followed by the host line terminator.
func (s *Session) SendLine(text string) error {
	return s.Send(text + platform.LineSeparator)
}

// WaitForExitCode blocks until the process exits and returns its raw exit
// code.
func (s *Session) WaitForExitCode(ctx context.Context) (int, error) {
	if s.proc == nil {
		return -1, &IOError{Op: "wait", Err: ErrNotStarted}
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	code, err := s.proc.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return -1, fmt.Errorf("wait for exit: %w", err)
		}
		return -1, &IOError{Op: "wait", Err: err}
	}
	s.logger.Debug("process exited", "entry", s.entryPoint, "pid", s.proc.Pid(), "code", code)
	return code, nil
}

// Kill forcibly terminates the process. Calling it again, or after the
// process exited on its own, does nothing. Reads that were waiting return
// any lines already buffered and then end-of-stream.
func (s *Session) Kill() error {
	if s.proc == nil {
		return nil
	}
	s.mu.Lock()
	if s.killed || s.proc.Exited() {
		s.mu.Unlock()
		return nil
	}
	s.killed = true
	s.mu.Unlock()

	s.logger.Debug("killing process", "entry", s.entryPoint, "pid", s.proc.Pid())
	if err := s.proc.Kill(); err != nil {
		return &IOError{Op: "kill", Err: err}
	}
	return nil
}

// Close kills the process if it is still running and releases the
// streams. The transcript stays readable.
func (s *Session) Close() error {
	if s.proc == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		err = s.Kill()
		s.proc.Release()
		s.stdout.close()
		s.stderr.close()
	})
	return err
}
