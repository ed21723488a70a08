// Package worker provides the concurrent record check pool of the consistency checker.
//
// # Overview
//
// A CheckPool runs a fixed number of RecordCheckWorkers. Every worker owns one
// bounded RecordQueue fed by the controller, validates the records it pulls
// with a pluggable types.RecordProcessor and reports page accesses through its
// own pagecache.PageCursorTracer. The package guarantees:
//
//   - Ordered initialization: worker i's Init completes before worker i+1's starts
//   - No record loss: every accepted record is processed exactly once, even when
//     StopAll races with submissions, provided every worker initializes
//   - Cooperative shutdown: workers drain their queues before terminating and are
//     never interrupted mid-record
//   - Per-worker tracing: each worker acquires its cursor tracer once; counts are
//     aggregated process-wide without loss
//
// # InitBarrier
//
// A ticket-style ordering gate. The shared counter starts at -1; worker id
// spins (yield first, then bounded exponential sleeps) until the counter equals
// id-1, runs its initialization and publishes id. The fast path is a single
// atomic load. A failed initialization poisons the barrier so waiting workers
// fail fast instead of deadlocking.
//
// # RecordQueue
//
// Single-producer single-consumer bounded FIFO. Offer blocks under
// backpressure; Poll waits at most a timeout.
//
// # RecordCheckWorker
//
// Lifecycle: Created, AwaitingTurn, Initializing, Running, Draining,
// Terminated. Done requests the stop; it is idempotent and never blocks.
//
// # CheckPool
//
// Controller-facing API: Start, Submit, TrySubmit, StopAll, AwaitCompletion,
// Stats. Optional Prometheus metrics via NewMetrics.
//
// # Error Handling
//
//   - Init failures are fatal: AwaitCompletion returns a *types.InitializationError
//     and records queued for workers after the failed one are not processed
//   - Process errors and panics become *types.ProcessingError values handed to
//     the configured ErrorHandler. ContinueOnError (default) logs and counts them;
//     FailFast records the first one as the pool failure while all workers still
//     drain
//
// # Usage Examples
//
// Basic usage:
//
//	tracer := pagecache.NewDefaultPageCacheTracer()
//	pool, err := worker.NewCheckPool(worker.SharedProcessor[int64](processor), tracer,
//		&worker.CheckPoolConfig{WorkerCount: 4, QueueCapacity: 20})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := pool.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	for id := int64(0); id < highID; id++ {
//		if err := pool.Submit(ctx, int(id%4), id); err != nil {
//			log.Printf("Failed to submit record %d: %v", id, err)
//		}
//	}
//
//	pool.StopAll()
//	if err := pool.AwaitCompletion(ctx); err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Pins: %d\n", tracer.Pins())
package worker
