package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/user/dialogtest/internal/config"
	"github.com/user/dialogtest/internal/launcher"
)

const usage = `usage: dialogtest <command> [flags] [args]

commands:
  run <script|dir>...   run dialog scripts against the configured program
  serve                 serve the run history and live watch API
  history               list recorded runs
  transcript <run-id>   print a recorded transcript
  init <dir>            write example scripts to dir
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(os.Stdout, os.Stderr).main(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	// newLauncher picks the launcher for "run".
	newLauncher func(cfg *config.Config) (launcher.Launcher, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		logger:      slog.Default(),
		newLauncher: configuredLauncher,
	}
}

func (a *app) main(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.stderr, usage)
		return 2
	}
	name, rest := args[0], args[1:]

	var cmd func(context.Context, *config.Config) error
	switch name {
	case "run":
		cmd = a.run
	case "serve":
		cmd = a.serve
	case "history":
		cmd = a.history
	case "transcript":
		cmd = a.transcript
	case "init":
		cmd = a.initScripts
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return 0
	default:
		fmt.Fprintf(a.stderr, "unknown command %q\n\n%s", name, usage)
		return 2
	}

	cfg, err := config.Load(name, rest)
	if err != nil {
		a.logger.Error("failed to load config", "error", err)
		return 2
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	if err := cmd(ctx, cfg); err != nil {
		if errors.Is(err, errRunsFailed) {
			return 1
		}
		a.logger.Error(name+" failed", "error", err)
		return 1
	}
	return 0
}

// configuredLauncher launches cfg.Command when set, otherwise the managed
// runtime.
func configuredLauncher(cfg *config.Config) (launcher.Launcher, error) {
	enc, err := launcher.LookupEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if cfg.Command != "" {
		return &launcher.Exec{Path: cfg.Command, PTY: cfg.PTY, Encoding: enc}, nil
	}
	var searchPath []string
	if cfg.ClassPath != "" {
		searchPath = filepath.SplitList(cfg.ClassPath)
	}
	rt, err := launcher.NewRuntime(launcher.RuntimeConfig{
		Home:       cfg.RuntimeHome,
		Name:       cfg.Runtime,
		SearchPath: searchPath,
		PTY:        cfg.PTY,
		Encoding:   enc,
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}
