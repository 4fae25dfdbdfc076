// Package launcher starts programs under test as child processes and hands
// back their three raw streams.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const defaultWaitDelay = 2 * time.Second

// Launcher starts an entry point with arguments.
type Launcher interface {
	Launch(ctx context.Context, entryPoint string, args ...string) (*Process, error)
}

// LaunchError reports a process that could not be spawned.
type LaunchError struct {
	EntryPoint string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q: %v", e.EntryPoint, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Exec launches "<Path> <Args...> <entryPoint> <args...>". An empty entry
// point is omitted, which makes Exec usable for plain commands.
type Exec struct {
	Path string
	Args []string
	// Env is appended to the parent environment.
	Env []string
	Dir string

	// EntryEnv, when set, passes the entry point as EntryEnv=<entryPoint>
	// in the environment instead of on the command line.
	EntryEnv string

	// PTY attaches stdin and stdout to a pseudo-terminal. Unix only.
	PTY bool

	// Encoding decodes stdout/stderr and encodes stdin. Nil means the
	// host default (UTF-8, passed through unchanged).
	Encoding encoding.Encoding

	// WaitDelay bounds how long Wait lingers on I/O after the process
	// exits. Zero uses two seconds.
	WaitDelay time.Duration
}

// Command returns the argv Launch would execute.
func (e *Exec) Command(entryPoint string, args ...string) []string {
	argv := make([]string, 0, len(e.Args)+len(args)+2)
	argv = append(argv, e.Path)
	argv = append(argv, e.Args...)
	if entryPoint != "" && e.EntryEnv == "" {
		argv = append(argv, entryPoint)
	}
	return append(argv, args...)
}

// Launch starts the process. The process is killed if ctx is cancelled
// before it exits.
func (e *Exec) Launch(ctx context.Context, entryPoint string, args ...string) (*Process, error) {
	if strings.TrimSpace(e.Path) == "" {
		return nil, &LaunchError{EntryPoint: entryPoint, Err: errors.New("no executable configured")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &LaunchError{EntryPoint: entryPoint, Err: err}
	}

	argv := e.Command(entryPoint, args...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.Dir
	cmd.Env = append(os.Environ(), e.Env...)
	if e.EntryEnv != "" {
		cmd.Env = append(cmd.Env, e.EntryEnv+"="+entryPoint)
	}
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	var (
		p   *Process
		err error
	)
	if e.PTY {
		p, err = startPTY(cmd)
	} else {
		p, err = startPipes(cmd)
	}
	if err != nil {
		return nil, &LaunchError{EntryPoint: entryPoint, Err: err}
	}
	if e.Encoding != nil {
		p.Stdout = transform.NewReader(p.Stdout, e.Encoding.NewDecoder())
		p.Stderr = transform.NewReader(p.Stderr, e.Encoding.NewDecoder())
		// transform.Writer closes the pipe it wraps.
		p.Stdin = transform.NewWriter(p.Stdin, e.Encoding.NewEncoder())
	}
	return p, nil
}

func startPipes(cmd *exec.Cmd) (*Process, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW)
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if err := cmd.Start(); err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW, stderrR, stderrW)
		return nil, err
	}
	// The child holds its own copies; ours would keep the streams open
	// past its exit.
	closeAll(stdinR, stdoutW, stderrW)

	return newProcess(cmd, stdinW, stdoutR, stderrR, []io.Closer{stdoutR, stderrR}), nil
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

// Process is a started child with its streams.
type Process struct {
	cmd *exec.Cmd

	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader

	readers []io.Closer

	waitOnce sync.Once
	exitCh   chan struct{}
	exitCode int
	exitErr  error

	mu       sync.Mutex
	killed   bool
	released bool
}

func newProcess(cmd *exec.Cmd, stdin io.WriteCloser, stdout, stderr io.Reader, readers []io.Closer) *Process {
	return &Process{
		cmd:     cmd,
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
		readers: readers,
		exitCh:  make(chan struct{}),
	}
}

// Pid returns the OS process id.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Args returns the argv the process was started with.
func (p *Process) Args() []string {
	return append([]string(nil), p.cmd.Args...)
}

// Done is closed once the process has terminated.
func (p *Process) Done() <-chan struct{} {
	p.startWait()
	return p.exitCh
}

// Exited reports whether the process has terminated, without blocking.
func (p *Process) Exited() bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits or ctx is done and returns the raw
// exit code. A process killed by a signal reports -1.
func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.Done():
		return p.exitCode, p.exitErr
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (p *Process) startWait() {
	p.waitOnce.Do(func() {
		go func() {
			err := p.cmd.Wait()
			var exitErr *exec.ExitError
			switch {
			case err == nil:
				p.exitCode = 0
			case errors.As(err, &exitErr):
				p.exitCode = exitErr.ExitCode()
			case errors.Is(err, exec.ErrWaitDelay):
				p.exitCode = p.cmd.ProcessState.ExitCode()
			default:
				p.exitCode = -1
				p.exitErr = err
			}

			p.mu.Lock()
			killed := p.killed
			p.mu.Unlock()
			if killed {
				p.Release()
			}
			close(p.exitCh)
		}()
	})
}

// Kill forcibly terminates the process. It is safe to call more than once
// and after the process has exited. Once the kill is observed the read
// ends are released so blocked readers see end-of-stream.
func (p *Process) Kill() error {
	p.mu.Lock()
	already := p.killed
	p.killed = true
	p.mu.Unlock()
	if already {
		return nil
	}

	p.startWait()
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.Pid(), err)
	}
	return nil
}

// Killed reports whether Kill was called.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Release closes the parent's read ends and stdin. Reads in progress fail
// with os.ErrClosed.
func (p *Process) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	p.mu.Unlock()

	_ = p.Stdin.Close()
	closeAll(p.readers...)
}

// IsEndOfStream reports whether a read error means the stream is finished
// rather than broken.
func IsEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || isPTYHangup(err)
}
