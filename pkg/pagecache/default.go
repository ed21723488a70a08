package pagecache

import (
	"sort"
	"sync"
	"sync/atomic"
)

// counters is a set of atomically updated page access counters
type counters struct {
	pins      atomic.Int64
	unpins    atomic.Int64
	hits      atomic.Int64
	faults    atomic.Int64
	bytesRead atomic.Int64
}

func (c *counters) snapshot() Counts {
	return Counts{
		Pins:      c.pins.Load(),
		Unpins:    c.unpins.Load(),
		Hits:      c.hits.Load(),
		Faults:    c.faults.Load(),
		BytesRead: c.bytesRead.Load(),
	}
}

// DefaultPageCacheTracer is the counting PageCacheTracer
type DefaultPageCacheTracer struct {
	total counters

	mu      sync.RWMutex
	cursors map[int]*cursorTracer
}

// NewDefaultPageCacheTracer creates a new counting tracer
func NewDefaultPageCacheTracer() *DefaultPageCacheTracer {
	return &DefaultPageCacheTracer{
		cursors: make(map[int]*cursorTracer),
	}
}

// CursorTracer returns the tracer owned by workerID, creating it on first use
func (t *DefaultPageCacheTracer) CursorTracer(workerID int) PageCursorTracer {
	t.mu.RLock()
	ct, ok := t.cursors[workerID]
	t.mu.RUnlock()
	if ok {
		return ct
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ct, ok = t.cursors[workerID]; ok {
		return ct
	}
	ct = &cursorTracer{workerID: workerID, parent: &t.total}
	t.cursors[workerID] = ct
	return ct
}

// Snapshot returns the aggregate counts over all workers
func (t *DefaultPageCacheTracer) Snapshot() Counts {
	return t.total.snapshot()
}

// WorkerCounts returns the counts attributed to workerID
func (t *DefaultPageCacheTracer) WorkerCounts(workerID int) Counts {
	t.mu.RLock()
	ct, ok := t.cursors[workerID]
	t.mu.RUnlock()
	if !ok {
		return Counts{}
	}
	return ct.Counts()
}

// WorkerIDs returns the sorted ids of all workers that acquired a cursor tracer
func (t *DefaultPageCacheTracer) WorkerIDs() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]int, 0, len(t.cursors))
	for id := range t.cursors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Pins returns the number of pins across all workers
func (t *DefaultPageCacheTracer) Pins() int64 {
	return t.total.pins.Load()
}

// Unpins returns the number of completed pins across all workers
func (t *DefaultPageCacheTracer) Unpins() int64 {
	return t.total.unpins.Load()
}

// Hits returns the number of pins served from memory
func (t *DefaultPageCacheTracer) Hits() int64 {
	return t.total.hits.Load()
}

// Faults returns the number of completed page faults
func (t *DefaultPageCacheTracer) Faults() int64 {
	return t.total.faults.Load()
}

// BytesRead returns the bytes read by page faults
func (t *DefaultPageCacheTracer) BytesRead() int64 {
	return t.total.bytesRead.Load()
}

// cursorTracer counts one worker's events and forwards each of them to the
// aggregate counters.
type cursorTracer struct {
	workerID int
	own      counters
	parent   *counters
}

func (c *cursorTracer) WorkerID() int {
	return c.workerID
}

func (c *cursorTracer) BeginPin(writeLock bool, filePageID int64) PinEvent {
	c.own.pins.Add(1)
	c.parent.pins.Add(1)
	return &pinEvent{cursor: c, writeLock: writeLock, filePageID: filePageID}
}

func (c *cursorTracer) Counts() Counts {
	return c.own.snapshot()
}

func (c *cursorTracer) Pins() int64 {
	return c.own.pins.Load()
}

func (c *cursorTracer) Unpins() int64 {
	return c.own.unpins.Load()
}

func (c *cursorTracer) Hits() int64 {
	return c.own.hits.Load()
}

func (c *cursorTracer) Faults() int64 {
	return c.own.faults.Load()
}

// pinEvent is used by the owning worker only
type pinEvent struct {
	cursor     *cursorTracer
	writeLock  bool
	filePageID int64
	hit        bool
	done       bool
}

func (e *pinEvent) Hit() {
	if e.hit || e.done {
		return
	}
	e.hit = true
	e.cursor.own.hits.Add(1)
	e.cursor.parent.hits.Add(1)
}

func (e *pinEvent) BeginPageFault() PageFaultEvent {
	return &faultEvent{cursor: e.cursor}
}

func (e *pinEvent) Done() {
	if e.done {
		return
	}
	e.done = true
	e.cursor.own.unpins.Add(1)
	e.cursor.parent.unpins.Add(1)
}

type faultEvent struct {
	cursor *cursorTracer
	bytes  int64
	done   bool
}

func (e *faultEvent) AddBytes(n int64) {
	if e.done || n <= 0 {
		return
	}
	e.bytes += n
}

func (e *faultEvent) Done() {
	if e.done {
		return
	}
	e.done = true
	e.cursor.own.faults.Add(1)
	e.cursor.parent.faults.Add(1)
	if e.bytes > 0 {
		e.cursor.own.bytesRead.Add(e.bytes)
		e.cursor.parent.bytesRead.Add(e.bytes)
	}
}
