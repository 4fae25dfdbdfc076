package hub

import (
	"sync"
	"time"
)

// Batcher coalesces transcript entries per run and hands them to onFlush
// at most once per interval.
type Batcher struct {
	mu       sync.Mutex
	pending  map[string]*pendingEntries
	interval time.Duration
	onFlush  func(msg EntriesMessage)
}

type pendingEntries struct {
	entries []EntryMessage
	timer   *time.Timer
}

func NewBatcher(interval time.Duration, onFlush func(EntriesMessage)) *Batcher {
	return &Batcher{
		pending:  make(map[string]*pendingEntries),
		interval: interval,
		onFlush:  onFlush,
	}
}

func (b *Batcher) Add(runID string, e EntryMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, exists := b.pending[runID]
	if !exists {
		p = &pendingEntries{}
		b.pending[runID] = p
	}
	p.entries = append(p.entries, e)

	if p.timer == nil {
		p.timer = time.AfterFunc(b.interval, func() {
			b.Flush(runID)
		})
	}
}

// Flush sends the pending entries of runID right away.
func (b *Batcher) Flush(runID string) {
	b.mu.Lock()
	p, exists := b.pending[runID]
	if !exists {
		b.mu.Unlock()
		return
	}
	delete(b.pending, runID)
	if p.timer != nil {
		p.timer.Stop()
	}
	// onFlush runs under the lock so batches of one run stay in order.
	if b.onFlush != nil && len(p.entries) > 0 {
		b.onFlush(EntriesMessage{Type: "entries", RunID: runID, Entries: p.entries})
	}
	b.mu.Unlock()
}

func (b *Batcher) FlushAll() {
	b.mu.Lock()
	runs := make([]string, 0, len(b.pending))
	for id := range b.pending {
		runs = append(runs, id)
	}
	b.mu.Unlock()

	for _, id := range runs {
		b.Flush(id)
	}
}
