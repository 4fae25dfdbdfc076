package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/user/dialogtest/configs"
	"github.com/user/dialogtest/internal/api"
	"github.com/user/dialogtest/internal/config"
	"github.com/user/dialogtest/internal/console"
	"github.com/user/dialogtest/internal/hub"
	"github.com/user/dialogtest/internal/script"
	"github.com/user/dialogtest/internal/server"
	"github.com/user/dialogtest/internal/store"
)

var errRunsFailed = errors.New("one or more runs failed")

func (a *app) run(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Args) == 0 {
		return errors.New("run needs at least one script file or directory")
	}
	scripts, err := loadScripts(cfg.Args)
	if err != nil {
		return err
	}
	l, err := a.newLauncher(cfg)
	if err != nil {
		return err
	}

	var (
		observers []script.Observer
		db        *store.DB
	)
	if cfg.Record {
		db, err = store.Open(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		observers = append(observers, store.NewRecorder(db))
	}
	if cfg.Watch {
		h, stop := a.startWatch(ctx, cfg, db)
		defer stop()
		observers = append(observers, h)
	}

	runner := &script.Runner{
		Launcher: l,
		Logger:   a.logger,
		Timeout:  cfg.Timeout,
		Options: []console.Option{
			console.WithQueueSize(cfg.QueueSize),
			console.WithEcho(cfg.Echo),
			console.WithStripANSI(cfg.StripANSI),
		},
	}
	if len(observers) > 0 {
		runner.Observer = script.Observers(observers...)
	}

	failed := 0
	for _, sc := range scripts {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := runner.Run(ctx, sc)
		if res != nil {
			a.report(res)
			if !res.Passed() {
				failed++
			}
		}
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(a.stdout, "\n%d passed, %d failed\n", len(scripts)-failed, failed)
	if failed > 0 {
		return errRunsFailed
	}
	return nil
}

func (a *app) report(res *script.Result) {
	elapsed := res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond)
	if res.Passed() {
		fmt.Fprintf(a.stdout, "PASS %s (%s)\n", res.Script, elapsed)
		return
	}
	fmt.Fprintf(a.stdout, "%s %s (%s): %s\n", strings.ToUpper(string(res.Status)), res.Script, elapsed, res.Failure)
	if res.Transcript != "" {
		fmt.Fprintf(a.stdout, "%s\n", indent(res.Transcript))
	}
}

func indent(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

// loadScripts expands directories and keeps argument order otherwise.
func loadScripts(paths []string) ([]*script.Script, error) {
	var out []*script.Script
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", script.ErrScriptNotFound, p)
		}
		if info.IsDir() {
			scripts, err := script.LoadDir(p)
			if err != nil {
				return nil, err
			}
			out = append(out, scripts...)
			continue
		}
		sc, err := script.Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no scripts in %s", script.ErrScriptNotFound, strings.Join(paths, ", "))
	}
	return out, nil
}

// startWatch serves the live hub until the returned stop func is called.
func (a *app) startWatch(ctx context.Context, cfg *config.Config, db *store.DB) (*hub.Hub, func()) {
	ctx, cancel := context.WithCancel(ctx)
	h := hub.New(cfg.Token, a.logger)
	go h.Run(ctx)

	var apiHandler http.Handler
	if db != nil {
		apiHandler = api.NewRouter(db, h, cfg.Token)
	}
	srv := server.New(cfg.Listen, h, apiHandler, a.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(ctx); err != nil {
			a.logger.Error("watch server error", "error", err)
		}
	}()
	a.printWatchURL(cfg)
	return h, func() {
		cancel()
		<-done
	}
}

func (a *app) printWatchURL(cfg *config.Config) {
	token := "<token>"
	if cfg.PrintToken {
		token = cfg.Token
	}
	fmt.Fprintf(a.stdout, "\nwatching at ws://%s/ws?token=%s\n\n", cfg.Listen, token)
}

func (a *app) serve(ctx context.Context, cfg *config.Config) error {
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	h := hub.New(cfg.Token, a.logger)
	go h.Run(ctx)
	srv := server.New(cfg.Listen, h, api.NewRouter(db, h, cfg.Token), a.logger)
	a.printWatchURL(cfg)
	return srv.Start(ctx)
}

func (a *app) history(ctx context.Context, cfg *config.Config) error {
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	filter := store.RunFilter{Limit: 20}
	if len(cfg.Args) > 0 {
		filter.Script = cfg.Args[0]
	}
	runs, err := db.Runs().List(ctx, filter)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCRIPT\tSTATUS\tEXIT\tSTARTED")
	for _, run := range runs {
		exit := "-"
		if run.ExitCode != nil {
			exit = fmt.Sprint(*run.ExitCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", run.ID, run.Script, run.Status, exit, run.StartedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *app) transcript(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Args) != 1 {
		return errors.New("transcript needs exactly one run id")
	}
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	text, err := store.Transcript(ctx, db, cfg.Args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, text)
	return nil
}

// initScripts writes the embedded example scripts, leaving existing files alone.
func (a *app) initScripts(_ context.Context, cfg *config.Config) error {
	if len(cfg.Args) != 1 {
		return errors.New("init needs exactly one target directory")
	}
	dir := cfg.Args[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %q: %w", dir, err)
	}
	names, err := fs.Glob(configs.ExampleScripts, "scripts/*.yaml")
	if err != nil {
		return err
	}
	for _, name := range names {
		target := filepath.Join(dir, path.Base(name))
		if _, err := os.Stat(target); err == nil {
			fmt.Fprintf(a.stdout, "skip  %s (exists)\n", target)
			continue
		}
		data, err := configs.ExampleScripts.ReadFile(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("write %q: %w", target, err)
		}
		fmt.Fprintf(a.stdout, "wrote %s\n", target)
	}
	return nil
}
