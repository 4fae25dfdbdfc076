// Package transcript records every line exchanged with a program under
// test, in the order the owning session performed the I/O.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/user/dialogtest/internal/platform"
)

// Direction tags an entry with the stream it travelled on.
type Direction int

const (
	// In is text sent to the program's stdin.
	In Direction = iota
	// Out is a line received from the program's stdout.
	Out
	// Err is a line received from the program's stderr.
	Err
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case Err:
		return "err"
	default:
		return "unknown"
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "in":
		return In, true
	case "out":
		return Out, true
	case "err":
		return Err, true
	}
	return 0, false
}

// prefix is the marker a rendered line starts with.
func (d Direction) prefix() string {
	switch d {
	case In:
		return "> in:  "
	case Out:
		return "> out: "
	default:
		return "> ! "
	}
}

// Entry is one recorded interaction.
type Entry struct {
	Seq       int64
	Direction Direction
	Text      string
	Time      time.Time
}

// String renders the entry the way it appears in a diagnostic.
func (e Entry) String() string {
	return e.Direction.prefix() + e.Text
}

// Sink observes entries as they are appended.
type Sink interface {
	Record(Entry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Entry)

func (f SinkFunc) Record(e Entry) { f(e) }

// Transcript is an append-only log. The zero value is ready to use.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	seq     int64
	sinks   []Sink
	now     func() time.Time
}

// New returns an empty transcript that notifies the given sinks.
func New(sinks ...Sink) *Transcript {
	t := &Transcript{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

// Attach adds a sink. Entries appended before the call are not replayed.
func (t *Transcript) Attach(s Sink) {
	if s == nil {
		return
	}
	t.mu.Lock()
	t.sinks = append(t.sinks, s)
	t.mu.Unlock()
}

// Append records text under the given direction and returns the entry.
func (t *Transcript) Append(d Direction, text string) Entry {
	t.mu.Lock()
	t.seq++
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	e := Entry{Seq: t.seq, Direction: d, Text: text, Time: now().UTC()}
	t.entries = append(t.entries, e)
	sinks := t.sinks
	t.mu.Unlock()

	// Sinks run outside the lock and in append order, which is the
	// caller's order under the single-caller discipline.
	for _, s := range sinks {
		s.Record(e)
	}
	return e
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Entries returns a copy of all entries in append order.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Render joins all entries with the host line terminator.
func (t *Transcript) Render() string {
	return Render(t.Entries())
}

// Render formats entries the same way Transcript.Render does.
func Render(entries []Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, platform.LineSeparator)
}
