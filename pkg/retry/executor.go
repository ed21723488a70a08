package retry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/jzx17/recordcheck/pkg/pagecache"
	"github.com/jzx17/recordcheck/pkg/types"
)

// Executor runs functions under a Policy
type Executor struct {
	policy *Policy
	clock  types.Clock

	totalAttempts   atomic.Int64
	totalRetries    atomic.Int64
	totalSuccesses  atomic.Int64
	totalFailures   atomic.Int64
	totalRetryDelay atomic.Int64 // nanoseconds
}

// Stats contains retry statistics
type Stats struct {
	TotalAttempts   int64         // total attempt count
	TotalRetries    int64         // attempts after the first one
	TotalSuccesses  int64         // calls that eventually succeeded
	TotalFailures   int64         // calls that gave up
	TotalRetryDelay time.Duration // time spent waiting between attempts
}

// ExecutorOption is a configuration option for the executor
type ExecutorOption func(*Executor)

// WithClock sets the clock used to wait between attempts
func WithClock(clock types.Clock) ExecutorOption {
	return func(e *Executor) {
		e.clock = clock
	}
}

// NewExecutor creates an executor for policy
func NewExecutor(policy *Policy, opts ...ExecutorOption) *Executor {
	if policy == nil {
		policy = NewPolicy(1, nil)
	}
	e := &Executor{
		policy: policy,
		clock:  types.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do calls fn until it succeeds, the policy gives up or ctx is done. The
// error of the last attempt is returned, annotated with the attempt count
// when fn was retried.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	logger := klog.FromContext(ctx)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.totalAttempts.Add(1)
		if attempt > 1 {
			e.totalRetries.Add(1)
		}

		err := fn(ctx)
		if err == nil {
			e.totalSuccesses.Add(1)
			if attempt > 1 {
				logger.V(3).Info("Retry succeeded", "attempt", attempt)
			}
			return nil
		}

		if !e.policy.ShouldRetry(err, attempt) {
			e.totalFailures.Add(1)
			if attempt > 1 {
				return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
			}
			return err
		}

		delay := e.policy.NextDelay(attempt)
		logger.V(3).Info("Retrying after transient failure", "attempt", attempt, "delay", delay, "err", err)
		if delay <= 0 {
			continue
		}

		e.totalRetryDelay.Add(int64(delay))
		timer := e.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C():
		}
	}
}

// Stats returns retry statistics
func (e *Executor) Stats() Stats {
	return Stats{
		TotalAttempts:   e.totalAttempts.Load(),
		TotalRetries:    e.totalRetries.Load(),
		TotalSuccesses:  e.totalSuccesses.Load(),
		TotalFailures:   e.totalFailures.Load(),
		TotalRetryDelay: time.Duration(e.totalRetryDelay.Load()),
	}
}

// Processor wraps p so that Process is run under executor. Init is passed
// through unchanged.
func Processor[R any](p types.RecordProcessor[R], executor *Executor) types.RecordProcessor[R] {
	return &retryingProcessor[R]{next: p, executor: executor}
}

type retryingProcessor[R any] struct {
	next     types.RecordProcessor[R]
	executor *Executor
}

func (p *retryingProcessor[R]) Init(workerID int) error {
	return p.next.Init(workerID)
}

func (p *retryingProcessor[R]) Process(ctx context.Context, record R, cursor pagecache.PageCursorTracer) error {
	return p.executor.Do(ctx, func(ctx context.Context) error {
		return p.next.Process(ctx, record, cursor)
	})
}
