// Package types defines core interfaces and types shared by the check pool packages
package types

import (
	"context"
	"time"

	"github.com/jzx17/recordcheck/pkg/pagecache"
)

// RecordProcessor validates records handed to it by a worker. Process is
// called concurrently from different workers; Init is called exactly once per
// worker, in ascending worker id order.
type RecordProcessor[R any] interface {
	// Init runs the one-time setup for workerID
	Init(workerID int) error

	// Process validates a single record, reporting page accesses to cursor.
	// A detected inconsistency is normal output and belongs to the
	// processor's own reporting channel; a returned error is an unexpected fault.
	Process(ctx context.Context, record R, cursor pagecache.PageCursorTracer) error
}

// ProcessorFactory returns the processor a given worker should use
type ProcessorFactory[R any] func(workerID int) RecordProcessor[R]

// CheckPool defines the controller-facing interface of a record check pool
type CheckPool[R any] interface {
	// Start launches all workers
	Start(ctx context.Context) error

	// Submit routes a record to a worker's queue, blocking under backpressure
	Submit(ctx context.Context, workerID int, record R) error

	// StopAll asks every worker to drain its queue and exit; it never blocks
	StopAll()

	// AwaitCompletion blocks until all workers terminate
	AwaitCompletion(ctx context.Context) error

	// Size returns the number of workers
	Size() int

	// Stats returns pool statistics
	Stats() PoolStats
}

// WorkerState defines the lifecycle state of a record check worker
type WorkerState int32

const (
	// WorkerStateCreated worker is constructed but not running
	WorkerStateCreated WorkerState = iota
	// WorkerStateAwaitingTurn worker waits for its initialization turn
	WorkerStateAwaitingTurn
	// WorkerStateInitializing worker runs its one-time setup
	WorkerStateInitializing
	// WorkerStateRunning worker polls its queue
	WorkerStateRunning
	// WorkerStateDraining worker observed the stop request and empties its queue
	WorkerStateDraining
	// WorkerStateTerminated worker has exited
	WorkerStateTerminated
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateCreated:
		return "created"
	case WorkerStateAwaitingTurn:
		return "awaiting-turn"
	case WorkerStateInitializing:
		return "initializing"
	case WorkerStateRunning:
		return "running"
	case WorkerStateDraining:
		return "draining"
	case WorkerStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// WorkerStats defines statistics of a single worker
type WorkerStats struct {
	ID             int
	State          WorkerState
	TotalProcessed int64
	TotalFailed    int64
	QueueLength    int
	LastRecordTime time.Time
}

// PoolStats defines statistics of a check pool
type PoolStats struct {
	// PoolSize is the number of workers
	PoolSize int

	// QueueCapacity is the capacity of each worker queue
	QueueCapacity int

	// QueuedRecords is the number of records waiting across all queues
	QueuedRecords int

	// TotalSubmitted is the number of records accepted by Submit
	TotalSubmitted int64

	// TotalProcessed is the number of records processed without error
	TotalProcessed int64

	// TotalFailed is the number of records whose processing returned an error
	TotalFailed int64

	// Workers holds per-worker statistics, indexed by worker id
	Workers []WorkerStats
}
