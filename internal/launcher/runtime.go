package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/user/dialogtest/internal/platform"
	"golang.org/x/text/encoding"
)

const defaultRuntimeName = "java"

// RuntimeConfig describes a managed runtime that is re-invoked with an
// entry point, the way a test harness starts "java -cp <classpath> Main".
type RuntimeConfig struct {
	// Home is the runtime installation directory. Empty falls back to
	// $JAVA_HOME, then to Name on $PATH.
	Home string
	// Name is the launcher binary inside Home/bin. Defaults to "java".
	Name string
	// SearchPath is passed with -cp. Empty falls back to $CLASSPATH.
	SearchPath []string
	// Options go before -cp, e.g. "-Xmx64m".
	Options []string

	Env      []string
	Dir      string
	PTY      bool
	Encoding encoding.Encoding
}

// NewRuntime resolves the runtime executable and returns a launcher for
// "<runtime> [options] -cp <search path> <entryPoint> [args...]".
func NewRuntime(cfg RuntimeConfig) (*Exec, error) {
	name := cfg.Name
	if name == "" {
		name = defaultRuntimeName
	}

	home := cfg.Home
	if home == "" {
		home = os.Getenv("JAVA_HOME")
	}
	var path string
	if home != "" {
		path = platform.RuntimeExecutable(home, name)
	} else {
		found, err := exec.LookPath(name)
		if err != nil {
			return nil, fmt.Errorf("locate runtime %q: %w", name, err)
		}
		path = found
	}

	searchPath := cfg.SearchPath
	if len(searchPath) == 0 {
		searchPath = filepath.SplitList(os.Getenv("CLASSPATH"))
	}

	args := append([]string(nil), cfg.Options...)
	if len(searchPath) > 0 {
		args = append(args, "-cp", strings.Join(searchPath, platform.ListSeparatorString))
	}

	return &Exec{
		Path:     path,
		Args:     args,
		Env:      cfg.Env,
		Dir:      cfg.Dir,
		PTY:      cfg.PTY,
		Encoding: cfg.Encoding,
	}, nil
}
