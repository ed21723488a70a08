// Package pagecache defines the page access tracing consumed by record check
// workers.
//
// A PageCacheTracer is the process-wide aggregator. Each worker acquires one
// PageCursorTracer from it for its whole lifetime and reports page pins,
// hits and faults through it. Every event is propagated to the aggregator as
// it happens, so aggregate reads are consistent at any time and a cursor
// tracer needs no teardown.
package pagecache

// PageCacheTracer aggregates page access events from all workers
type PageCacheTracer interface {
	// CursorTracer returns the tracer owned by workerID. Repeated calls for
	// the same id return the same tracer.
	CursorTracer(workerID int) PageCursorTracer

	// Snapshot returns the aggregate counts over all workers
	Snapshot() Counts

	// WorkerCounts returns the counts attributed to workerID
	WorkerCounts(workerID int) Counts

	// WorkerIDs returns the ids of all workers that acquired a cursor tracer
	WorkerIDs() []int

	Pins() int64
	Unpins() int64
	Hits() int64
	Faults() int64
	BytesRead() int64
}

// PageCursorTracer records the page accesses of a single worker
type PageCursorTracer interface {
	// WorkerID returns the owning worker
	WorkerID() int

	// BeginPin records a page pin; the returned event must be completed with Done
	BeginPin(writeLock bool, filePageID int64) PinEvent

	// Counts returns the counts recorded through this tracer
	Counts() Counts

	Pins() int64
	Unpins() int64
	Hits() int64
	Faults() int64
}

// PinEvent is an in-flight page pin
type PinEvent interface {
	// Hit marks the page as already resident
	Hit()

	// BeginPageFault records that the page had to be loaded
	BeginPageFault() PageFaultEvent

	// Done unpins the page. Calling Done more than once has no effect.
	Done()
}

// PageFaultEvent is an in-flight page fault
type PageFaultEvent interface {
	// AddBytes records bytes read from storage while serving the fault
	AddBytes(n int64)

	// Done completes the fault. Calling Done more than once has no effect.
	Done()
}

// Counts is a point-in-time copy of page access counters
type Counts struct {
	Pins      int64
	Unpins    int64
	Hits      int64
	Faults    int64
	BytesRead int64
}

// Add returns the field-wise sum of c and o
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Pins:      c.Pins + o.Pins,
		Unpins:    c.Unpins + o.Unpins,
		Hits:      c.Hits + o.Hits,
		Faults:    c.Faults + o.Faults,
		BytesRead: c.BytesRead + o.BytesRead,
	}
}

// HitRatio returns hits divided by pins
func (c Counts) HitRatio() float64 {
	if c.Pins == 0 {
		return 0
	}
	return float64(c.Hits) / float64(c.Pins)
}
