//go:build unix

package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// startPTY runs cmd with stdin and stdout on a pseudo-terminal and stderr
// on a pipe, so the two output streams stay distinguishable.
func startPTY(cmd *exec.Cmd) (*Process, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if err := quietTerminal(tty); err != nil {
		closeAll(ptmx, tty)
		return nil, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(ptmx, tty)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = stderrW
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
	cmd.SysProcAttr.Setctty = true

	if err := cmd.Start(); err != nil {
		closeAll(ptmx, tty, stderrR, stderrW)
		return nil, err
	}
	closeAll(tty, stderrW)

	return newProcess(cmd, nopWriteCloser{ptmx}, ptmx, stderrR, []io.Closer{ptmx, stderrR}), nil
}

// quietTerminal turns off input echo and NL to CR-NL output mapping so the
// terminal carries the same bytes a pipe would.
func quietTerminal(tty *os.File) error {
	attr, err := termios.Tcgetattr(tty.Fd())
	if err != nil {
		return fmt.Errorf("read terminal attributes: %w", err)
	}
	attr.Lflag &^= unix.ECHO
	attr.Oflag &^= unix.ONLCR
	if err := termios.Tcsetattr(tty.Fd(), termios.TCSANOW, attr); err != nil {
		return fmt.Errorf("set terminal attributes: %w", err)
	}
	return nil
}

// Reading the master after the last slave descriptor closes fails with EIO
// on Linux.
func isPTYHangup(err error) bool {
	return errors.Is(err, syscall.EIO)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
