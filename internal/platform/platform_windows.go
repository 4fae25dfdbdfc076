//go:build windows

package platform

const (
	// LineSeparator is the host's native line terminator.
	LineSeparator = "\r\n"
	// ExecutableSuffix is appended to executable names on this host.
	ExecutableSuffix = ".exe"
)
