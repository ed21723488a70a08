package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jzx17/recordcheck/pkg/types"
)

// DefaultQueueCapacity is the per-worker queue capacity used when none is configured
const DefaultQueueCapacity = 20

// RecordQueue is the bounded FIFO between the controller and one worker.
// Offer blocks while the queue is full so the producer cannot run ahead of
// the checks; Poll waits at most a timeout so an idle worker can re-check its
// stop request.
type RecordQueue[R any] struct {
	records chan R
	clock   types.Clock
}

// NewRecordQueue creates a queue holding at most capacity records
func NewRecordQueue[R any](capacity int, clock types.Clock) (*RecordQueue[R], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: queue capacity must be positive, got %d", types.ErrInvalidConfig, capacity)
	}
	if clock == nil {
		clock = types.NewRealClock()
	}
	return &RecordQueue[R]{
		records: make(chan R, capacity),
		clock:   clock,
	}, nil
}

// Offer appends record, blocking while the queue is full
func (q *RecordQueue[R]) Offer(ctx context.Context, record R) error {
	return q.offer(ctx, record, nil)
}

// offer is Offer that also gives up once abort is closed
func (q *RecordQueue[R]) offer(ctx context.Context, record R, abort <-chan struct{}) error {
	select {
	case q.records <- record:
		return nil
	default:
	}

	select {
	case q.records <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-abort:
		return types.ErrWorkerTerminated
	}
}

// TryOffer appends record if there is room and reports whether it did
func (q *RecordQueue[R]) TryOffer(record R) bool {
	select {
	case q.records <- record:
		return true
	default:
		return false
	}
}

// Poll returns the next record, waiting at most timeout for one to arrive
func (q *RecordQueue[R]) Poll(timeout time.Duration) (R, bool) {
	return q.poll(timeout, nil)
}

// poll is Poll that also returns early once wake is closed
func (q *RecordQueue[R]) poll(timeout time.Duration, wake <-chan struct{}) (R, bool) {
	if record, ok := q.TryPoll(); ok {
		return record, true
	}

	var zero R
	if timeout <= 0 {
		return zero, false
	}

	timer := q.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case record := <-q.records:
		return record, true
	case <-timer.C():
		return zero, false
	case <-wake:
		return zero, false
	}
}

// TryPoll returns the next record without waiting
func (q *RecordQueue[R]) TryPoll() (R, bool) {
	select {
	case record := <-q.records:
		return record, true
	default:
		var zero R
		return zero, false
	}
}

// Len returns the number of queued records
func (q *RecordQueue[R]) Len() int {
	return len(q.records)
}

// Cap returns the queue capacity
func (q *RecordQueue[R]) Cap() int {
	return cap(q.records)
}
