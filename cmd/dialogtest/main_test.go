package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/dialogtest/internal/config"
	"github.com/user/dialogtest/internal/launcher"
	"github.com/user/dialogtest/internal/store"
)

func TestMain(m *testing.M) {
	launcher.Register("Greeter", func([]string) int {
		fmt.Println("Enter name:")
		name, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		fmt.Printf("Hello, %s\n", strings.TrimSpace(name))
		return 0
	})
	launcher.Register("Menu", func([]string) int {
		in := bufio.NewScanner(os.Stdin)
		fmt.Println("Welcome")
		fmt.Println("1) add")
		fmt.Println("2) double")
		fmt.Println("Choose an option:")
		for in.Scan() {
			switch strings.TrimSpace(in.Text()) {
			case "1":
				fmt.Println("Result: 3")
			case "2":
				fmt.Println("Result: 42")
			case "q":
				fmt.Println("Bye")
				return 0
			}
		}
		return 1
	})
	launcher.Dispatch()
	os.Exit(m.Run())
}

type harness struct {
	dir    string
	db     string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.PathEnv, filepath.Join(dir, "config"))
	return &harness{dir: dir, db: filepath.Join(dir, "runs.db")}
}

func (h *harness) exec(t *testing.T, args ...string) int {
	t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	a := newApp(&h.stdout, &h.stderr)
	a.newLauncher = func(*config.Config) (launcher.Launcher, error) {
		return launcher.Self()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.main(ctx, args)
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s error = %v", name, err)
	}
	return p
}

func TestInitThenRunExampleScripts(t *testing.T) {
	h := newHarness(t)
	scripts := filepath.Join(h.dir, "scripts")

	if code := h.exec(t, "init", scripts); code != 0 {
		t.Fatalf("init exit = %d, stderr = %s", code, h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), "greeter.yaml") {
		t.Fatalf("init output = %q", h.stdout.String())
	}

	if code := h.exec(t, "run", "-db", h.db, scripts); code != 0 {
		t.Fatalf("run exit = %d\nstdout:\n%s\nstderr:\n%s", code, h.stdout.String(), h.stderr.String())
	}
	out := h.stdout.String()
	for _, want := range []string{"PASS greeter", "PASS menu", "2 passed, 0 failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("run output missing %q:\n%s", want, out)
		}
	}

	if code := h.exec(t, "history", "-db", h.db); code != 0 {
		t.Fatalf("history exit = %d, stderr = %s", code, h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), "greeter") || !strings.Contains(h.stdout.String(), "passed") {
		t.Fatalf("history output = %q", h.stdout.String())
	}
}

func TestInitSkipsExistingFiles(t *testing.T) {
	h := newHarness(t)
	writeScript(t, h.dir, "greeter.yaml", "keep me")

	if code := h.exec(t, "init", h.dir); code != 0 {
		t.Fatalf("init exit = %d, stderr = %s", code, h.stderr.String())
	}
	data, err := os.ReadFile(filepath.Join(h.dir, "greeter.yaml"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "keep me" {
		t.Fatalf("greeter.yaml overwritten: %q", data)
	}
	if !strings.Contains(h.stdout.String(), "skip") {
		t.Fatalf("init output = %q", h.stdout.String())
	}
}

func TestRunFailureExitsOneAndStoresTranscript(t *testing.T) {
	h := newHarness(t)
	p := writeScript(t, h.dir, "rude.yaml", `
name: rude
entry: Greeter
timeout: 5s
steps:
  - expect: "Enter name:"
  - send_line: Bob
  - expect: "Hi, Bob"
`)

	if code := h.exec(t, "run", "-db", h.db, p); code != 1 {
		t.Fatalf("run exit = %d, want 1\nstdout:\n%s", code, h.stdout.String())
	}
	out := h.stdout.String()
	if !strings.Contains(out, "FAILED rude") || !strings.Contains(out, "> out: Hello, Bob") {
		t.Fatalf("run output = %q", out)
	}

	db, err := store.Open(context.Background(), h.db)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	runs, err := db.Runs().List(context.Background(), store.RunFilter{Script: "rude"})
	db.Close()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "failed" {
		t.Fatalf("runs = %+v", runs)
	}

	if code := h.exec(t, "transcript", "-db", h.db, runs[0].ID); code != 0 {
		t.Fatalf("transcript exit = %d, stderr = %s", code, h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), "> in:  Bob") {
		t.Fatalf("transcript output = %q", h.stdout.String())
	}
}

func TestRunWithoutRecording(t *testing.T) {
	h := newHarness(t)
	p := writeScript(t, h.dir, "greet.yaml", `
entry: Greeter
steps:
  - expect: "Enter name:"
  - send_line: Ann
  - expect_contains: [Hello, Ann]
`)

	if code := h.exec(t, "run", "-record=false", p); code != 0 {
		t.Fatalf("run exit = %d\n%s", code, h.stdout.String())
	}
	if !strings.Contains(h.stdout.String(), "PASS greet") {
		t.Fatalf("run output = %q", h.stdout.String())
	}
	if _, err := os.Stat(h.db); !os.IsNotExist(err) {
		t.Fatalf("database created without recording, stat error = %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: 2},
		{name: "unknown command", args: []string{"bogus"}, want: 2},
		{name: "bad flag", args: []string{"run", "-queue", "0", "x.yaml"}, want: 2},
		{name: "run without scripts", args: []string{"run", "-record=false"}, want: 1},
		{name: "missing script", args: []string{"run", "-record=false", "missing.yaml"}, want: 1},
		{name: "transcript without id", args: []string{"transcript"}, want: 1},
		{name: "help", args: []string{"help"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if got := h.exec(t, tt.args...); got != tt.want {
				t.Fatalf("exit = %d, want %d (stderr %q)", got, tt.want, h.stderr.String())
			}
		})
	}
}
