// Package dedupe remembers which scenario fingerprints already have a run so
// identical submissions are answered with the existing run.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper maps scenario fingerprints to the run that analyses them.
type Deduper interface {
	// SeenAndRecord atomically returns the run recorded for fingerprint, or
	// records runID for it. seen is true when an earlier run was returned.
	SeenAndRecord(ctx context.Context, fingerprint, runID string) (existing string, seen bool)

	// Unrecord forgets fingerprint, allowing it to be submitted again.
	// Used when a run could not be queued or failed.
	Unrecord(ctx context.Context, fingerprint string)

	Size() int64
}

type entry struct {
	fingerprint string
	runID       string
}

// inMemoryDeduper is a bounded map with oldest-first eviction.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is oldest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10_000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, fingerprint, runID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[fingerprint]; ok {
		return el.Value.(entry).runID, true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[fingerprint] = d.order.PushBack(entry{fingerprint: fingerprint, runID: runID})
	d.size.Add(1)
	return runID, false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, fingerprint string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[fingerprint]; ok {
		d.order.Remove(el)
		delete(d.seen, fingerprint)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Front()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(entry).fingerprint)
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
