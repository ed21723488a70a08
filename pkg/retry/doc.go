// Package retry re-runs record validation that failed for a transient reason.
//
// A consistency check reads every page of the store; a read can fail
// transiently (an interrupted I/O, a page evicted under the cursor) without
// the record itself being inconsistent. Processor wraps a
// types.RecordProcessor so that such failures are retried in place, on the
// same worker and with the same cursor tracer, before the error reaches the
// pool's error handler.
//
// Only errors marked with Transient are retried by default:
//
//	policy := retry.NewPolicy(3, backoff.NewExponentialBackoff(time.Millisecond))
//	executor := retry.NewExecutor(policy)
//
//	factory := worker.SharedProcessor[int64](retry.Processor(checker, executor))
//
//	// inside the checker
//	if err := readPage(id); err != nil {
//		return retry.Transient(err)
//	}
//
// Initialization is never retried: a worker whose Init fails breaks the pool.
//
// Executors are safe for concurrent use by all workers of a pool.
package retry
