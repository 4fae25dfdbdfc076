// Package platform holds the host conventions the simulator depends on:
// the native line terminator and where a managed runtime keeps its
// executable.
package platform

import (
	"os"
	"path/filepath"
)

// RuntimeExecutable returns the path of the runtime launcher binary
// below home, e.g. "<home>/bin/java" or "<home>\bin\java.exe".
func RuntimeExecutable(home, name string) string {
	return filepath.Join(home, "bin", name+ExecutableSuffix)
}

// ListSeparatorString is the host separator for search paths such as a
// classpath.
const ListSeparatorString = string(os.PathListSeparator)
