package launcher

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// EntryVar carries the entry point name into a re-invoked executable.
const EntryVar = "DIALOGTEST_ENTRY"

// EntryFunc is a program body selectable by name. It receives the
// arguments after argv[0] and returns the exit code.
type EntryFunc func(args []string) int

var (
	entriesMu sync.RWMutex
	entries   = make(map[string]EntryFunc)
)

// Register makes fn startable through Self under name. It panics on an
// empty name or a duplicate registration.
func Register(name string, fn EntryFunc) {
	if name == "" || fn == nil {
		panic("launcher: Register requires a name and a function")
	}
	entriesMu.Lock()
	defer entriesMu.Unlock()
	if _, dup := entries[name]; dup {
		panic(fmt.Sprintf("launcher: entry point %q registered twice", name))
	}
	entries[name] = fn
}

// Entries lists registered entry points in sorted order.
func Entries() []string {
	entriesMu.RLock()
	defer entriesMu.RUnlock()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the entry point named by EntryVar and exits. It returns
// immediately when the variable is unset, so it belongs at the top of
// main or TestMain.
func Dispatch() {
	name := os.Getenv(EntryVar)
	if name == "" {
		return
	}
	os.Exit(runEntry(name, os.Args[1:]))
}

func runEntry(name string, args []string) int {
	entriesMu.RLock()
	fn, ok := entries[name]
	entriesMu.RUnlock()
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown entry point %q\n", name)
		return 127
	}
	return fn(args)
}

// Self returns a launcher that re-invokes the running executable with the
// entry point passed through EntryVar.
func Self() (*Exec, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &Exec{Path: exe, EntryEnv: EntryVar}, nil
}
