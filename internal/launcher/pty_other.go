//go:build !unix

package launcher

import (
	"fmt"
	"os/exec"
	"runtime"
)

func startPTY(*exec.Cmd) (*Process, error) {
	return nil, fmt.Errorf("pty mode is not supported on %s", runtime.GOOS)
}

func isPTYHangup(error) bool { return false }
