//go:build !windows

package platform

const (
	// LineSeparator is the host's native line terminator.
	LineSeparator = "\n"
	// ExecutableSuffix is appended to executable names on this host.
	ExecutableSuffix = ""
)
