package pagecache

// Null is a PageCacheTracer that records nothing
var Null PageCacheTracer = nullTracer{}

type nullTracer struct{}

func (nullTracer) CursorTracer(workerID int) PageCursorTracer {
	return nullCursor{workerID: workerID}
}

func (nullTracer) Snapshot() Counts {
	return Counts{}
}

func (nullTracer) WorkerCounts(int) Counts {
	return Counts{}
}

func (nullTracer) WorkerIDs() []int {
	return nil
}

func (nullTracer) Pins() int64 {
	return 0
}

func (nullTracer) Unpins() int64 {
	return 0
}

func (nullTracer) Hits() int64 {
	return 0
}

func (nullTracer) Faults() int64 {
	return 0
}

func (nullTracer) BytesRead() int64 {
	return 0
}

type nullCursor struct {
	workerID int
}

func (c nullCursor) WorkerID() int {
	return c.workerID
}

func (nullCursor) BeginPin(bool, int64) PinEvent {
	return nullPin{}
}

func (nullCursor) Counts() Counts {
	return Counts{}
}

func (nullCursor) Pins() int64 {
	return 0
}

func (nullCursor) Unpins() int64 {
	return 0
}

func (nullCursor) Hits() int64 {
	return 0
}

func (nullCursor) Faults() int64 {
	return 0
}

type nullPin struct{}

func (nullPin) Hit() {}

func (nullPin) BeginPageFault() PageFaultEvent {
	return nullFault{}
}

func (nullPin) Done() {}

type nullFault struct{}

func (nullFault) AddBytes(int64) {}

func (nullFault) Done() {}

