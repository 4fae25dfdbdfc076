package platform

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRuntimeExecutable(t *testing.T) {
	home := filepath.Join("opt", "jdk")
	got := RuntimeExecutable(home, "java")

	if !strings.HasPrefix(got, filepath.Join(home, "bin")) {
		t.Fatalf("RuntimeExecutable() = %q, want prefix %q", got, filepath.Join(home, "bin"))
	}
	want := "java"
	if runtime.GOOS == "windows" {
		want = "java.exe"
	}
	if filepath.Base(got) != want {
		t.Fatalf("base = %q, want %q", filepath.Base(got), want)
	}
}

func TestLineSeparator(t *testing.T) {
	want := "\n"
	if runtime.GOOS == "windows" {
		want = "\r\n"
	}
	if LineSeparator != want {
		t.Fatalf("LineSeparator = %q, want %q", LineSeparator, want)
	}
}
