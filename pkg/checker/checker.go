// Package checker drives a full consistency check through a worker pool.
//
// Run is the controller: it starts the pool, routes every record of the
// input to a worker with a Partitioner, signals StopAll once the input is
// exhausted and waits for all workers to drain.
package checker

import (
	"context"
	"fmt"
	"iter"
	"time"

	"k8s.io/klog/v2"

	"github.com/jzx17/recordcheck/pkg/pagecache"
	"github.com/jzx17/recordcheck/pkg/types"
)

// progressEvery is how many submitted records separate two progress log lines
const progressEvery = 10000

// Pool is the part of a check pool the controller needs
type Pool[R any] interface {
	types.CheckPool[R]

	// Tracer returns the tracer the workers report page accesses to
	Tracer() pagecache.PageCacheTracer

	// Clock is used to time the run
	Clock() types.Clock
}

// WorkerReport summarizes the work of one worker
type WorkerReport struct {
	ID        int
	Processed int64
	Failed    int64
	PageCache pagecache.Counts
}

// Report summarizes a finished check
type Report struct {
	// Workers is the pool size
	Workers int

	// Submitted is the number of records handed to the pool
	Submitted int64

	// Processed and Failed count records by outcome of Process
	Processed int64
	Failed    int64

	// PageCache holds the page access counts of all workers
	PageCache pagecache.Counts

	// PerWorker is indexed by worker id
	PerWorker []WorkerReport

	Elapsed time.Duration
}

// String returns a one-line summary
func (r Report) String() string {
	return fmt.Sprintf("%d records on %d workers in %v: %d processed, %d failed, %d pins, %d faults",
		r.Submitted, r.Workers, r.Elapsed, r.Processed, r.Failed, r.PageCache.Pins, r.PageCache.Faults)
}

// Run checks every record of records on pool, which must not be started yet.
// A nil partition means RoundRobin.
//
// Run always waits for the workers to drain, also when ctx is cancelled or
// feeding fails: cancellation stops the feeding, never a record in flight.
// The returned error is the pool's fatal failure if there was one, otherwise
// the error that stopped the feeding.
func Run[R any](ctx context.Context, pool Pool[R], records iter.Seq[R], partition Partitioner[R]) (Report, error) {
	if partition == nil {
		partition = RoundRobin[R]()
	}
	logger := klog.FromContext(ctx)
	clock := pool.Clock()
	start := clock.Now()
	workers := pool.Size()

	if err := pool.Start(ctx); err != nil {
		return Report{}, err
	}
	logger.V(2).Info("Consistency check started", "workers", workers)

	var submitted int64
	var feedErr error
	index := 0
	for record := range records {
		if err := ctx.Err(); err != nil {
			feedErr = err
			break
		}
		w := partition(record, index, workers)
		if err := pool.Submit(ctx, w, record); err != nil {
			feedErr = fmt.Errorf("submitting record %d to worker %d: %w", index, w, err)
			break
		}
		submitted++
		index++

		if submitted%progressEvery == 0 {
			logger.V(2).Info("Check progress", "submitted", submitted)
		}
	}

	pool.StopAll()
	awaitErr := pool.AwaitCompletion(context.WithoutCancel(ctx))

	report := buildReport(pool, submitted, clock.Since(start))

	err := awaitErr
	if err == nil {
		err = feedErr
	}
	if err != nil {
		logger.Error(err, "Consistency check failed", "submitted", submitted)
		return report, err
	}

	logger.Info("Consistency check finished",
		"records", report.Submitted, "processed", report.Processed, "failed", report.Failed,
		"pins", report.PageCache.Pins, "elapsed", report.Elapsed)
	return report, nil
}

func buildReport[R any](pool Pool[R], submitted int64, elapsed time.Duration) Report {
	stats := pool.Stats()
	tracer := pool.Tracer()

	report := Report{
		Workers:   stats.PoolSize,
		Submitted: submitted,
		Processed: stats.TotalProcessed,
		Failed:    stats.TotalFailed,
		PageCache: tracer.Snapshot(),
		PerWorker: make([]WorkerReport, len(stats.Workers)),
		Elapsed:   elapsed,
	}
	for i, ws := range stats.Workers {
		report.PerWorker[i] = WorkerReport{
			ID:        ws.ID,
			Processed: ws.TotalProcessed,
			Failed:    ws.TotalFailed,
			PageCache: tracer.WorkerCounts(ws.ID),
		}
	}
	return report
}
