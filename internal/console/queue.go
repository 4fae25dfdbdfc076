package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/user/dialogtest/internal/launcher"
)

const defaultQueueSize = 4096

// lineQueue drains one stream into an ordered buffer of lines.
type lineQueue struct {
	lines    chan string
	stop     chan struct{}
	stopOnce sync.Once
	// err is written before lines is closed and read only after.
	err error
}

func newLineQueue(r io.Reader, size int) *lineQueue {
	if size <= 0 {
		size = defaultQueueSize
	}
	q := &lineQueue{
		lines: make(chan string, size),
		stop:  make(chan struct{}),
	}
	go q.pump(r)
	return q
}

func (q *lineQueue) pump(r io.Reader) {
	defer close(q.lines)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			select {
			case q.lines <- trimEOL(line):
			case <-q.stop:
				return
			}
		}
		if err != nil {
			if !launcher.IsEndOfStream(err) {
				q.err = err
			}
			return
		}
	}
}

// next returns the next line, or ok=false once the stream has ended and
// every buffered line was consumed.
func (q *lineQueue) next(ctx context.Context) (line string, ok bool, err error) {
	select {
	case line, ok := <-q.lines:
		if !ok {
			return "", false, q.err
		}
		return line, true, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (q *lineQueue) close() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// trimEOL drops a trailing "\n" or "\r\n".
func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
