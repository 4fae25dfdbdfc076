package console

import (
	"log/slog"
	"time"

	"github.com/user/dialogtest/internal/transcript"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	queueSize int
	timeout   time.Duration
	sinks     []transcript.Sink
	echo      bool
	clean     func(string) string
}

// WithLogger sets the logger for lifecycle events. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithQueueSize bounds how many unread lines each stream buffers before
// its reader stops draining the pipe.
func WithQueueSize(lines int) Option {
	return func(o *options) {
		o.queueSize = lines
	}
}

// WithDefaultTimeout bounds blocking operations whose context has no
// deadline. Zero, the default, waits without limit.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSinks attaches transcript observers.
func WithSinks(sinks ...transcript.Sink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithEcho logs every transcript entry at info level as it is recorded.
func WithEcho(enabled bool) Option {
	return func(o *options) {
		o.echo = enabled
	}
}

// WithStripANSI removes terminal escape sequences and control bytes from
// every line read. Useful with launcher.Exec.PTY, where programs tend to
// colour their output.
func WithStripANSI(enabled bool) Option {
	return func(o *options) {
		if enabled {
			o.clean = StripANSI
		} else {
			o.clean = nil
		}
	}
}

func resolveOptions(opts []Option) options {
	o := options{
		logger:    slog.Default(),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
