package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	perrors "github.com/jzx17/recordcheck/internal/errors"
	"github.com/jzx17/recordcheck/pkg/backoff"
	"github.com/jzx17/recordcheck/pkg/pagecache"
	"github.com/jzx17/recordcheck/pkg/types"
)

// CheckPoolConfig defines configuration for a record check pool
type CheckPoolConfig struct {
	// WorkerCount is the number of workers, each with its own queue
	WorkerCount int

	// QueueCapacity is the capacity of every worker queue
	QueueCapacity int

	// PollInterval bounds each wait of an idle worker on its queue
	PollInterval time.Duration

	// SpinBackoff paces workers waiting for their initialization turn
	SpinBackoff backoff.Strategy

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// ErrorHandler classifies processing failures (optional, defaults to ContinueOnError)
	ErrorHandler ErrorHandler

	// Metrics receives pool observations (optional)
	Metrics *Metrics
}

// DefaultCheckPoolConfig returns default configuration
func DefaultCheckPoolConfig() *CheckPoolConfig {
	return &CheckPoolConfig{
		WorkerCount:   runtime.NumCPU(),
		QueueCapacity: DefaultQueueCapacity,
		PollInterval:  DefaultPollInterval,
		SpinBackoff:   backoff.NewExponentialBackoff(time.Microsecond, backoff.WithMaxDelay(time.Millisecond)),
		Clock:         types.NewRealClock(),
	}
}

// Validate checks the configuration
func (c *CheckPoolConfig) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker count must be positive, got %d", types.ErrInvalidConfig, c.WorkerCount)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity must be positive, got %d", types.ErrInvalidConfig, c.QueueCapacity)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: poll interval must not be negative, got %v", types.ErrInvalidConfig, c.PollInterval)
	}
	return nil
}

var _ types.CheckPool[int] = (*CheckPool[int])(nil)

const (
	poolCreated int32 = iota
	poolRunning
)

// CheckPool runs a fixed set of record check workers, one bounded queue per
// worker. The controller routes records with Submit, calls StopAll once all
// records are submitted and then waits with AwaitCompletion.
type CheckPool[R any] struct {
	config  *CheckPoolConfig
	barrier *InitBarrier
	tracer  pagecache.PageCacheTracer
	workers []*RecordCheckWorker[R]

	state atomic.Int32

	// Submit holds submitMu for reading while it enqueues; StopAll takes it
	// for writing before signalling the workers, so every accepted record is
	// queued before any worker can observe the stop request.
	submitMu sync.RWMutex
	stopping atomic.Bool
	stopOnce sync.Once

	group    errgroup.Group
	finished chan struct{}
	groupErr error
	failures perrors.FirstError

	submitted atomic.Int64
}

// NewCheckPool creates a pool whose workers get their processor from factory
// and their cursor tracers from tracer
func NewCheckPool[R any](factory types.ProcessorFactory[R], tracer pagecache.PageCacheTracer,
	config *CheckPoolConfig) (*CheckPool[R], error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: processor factory cannot be nil", types.ErrInvalidConfig)
	}
	if config == nil {
		config = DefaultCheckPoolConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = types.NewRealClock()
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = ContinueOnError()
	}
	if tracer == nil {
		tracer = pagecache.Null
	}

	p := &CheckPool[R]{
		config: config,
		barrier: NewInitBarrier(&BarrierConfig{
			Backoff: config.SpinBackoff,
			Clock:   config.Clock,
		}),
		tracer:   tracer,
		workers:  make([]*RecordCheckWorker[R], config.WorkerCount),
		finished: make(chan struct{}),
	}

	workerConfig := &WorkerConfig{
		PollInterval: config.PollInterval,
		Clock:        config.Clock,
		ErrorHandler: config.ErrorHandler,
		Metrics:      config.Metrics,
		OnFailure: func(err error) {
			p.failures.Record(err)
			// a broken barrier means the pool can never finish normally
			var initErr *types.InitializationError
			if errors.As(err, &initErr) {
				p.StopAll()
			}
		},
	}

	for id := 0; id < config.WorkerCount; id++ {
		processor := factory(id)
		if processor == nil {
			return nil, fmt.Errorf("%w: processor factory returned nil for worker %d", types.ErrInvalidConfig, id)
		}
		queue, err := NewRecordQueue[R](config.QueueCapacity, config.Clock)
		if err != nil {
			return nil, err
		}
		p.workers[id] = NewRecordCheckWorker(id, p.barrier, queue, processor, tracer, workerConfig)
	}

	return p, nil
}

// Start launches one goroutine per worker. Cancelling ctx is translated into
// StopAll: workers drain their queues and exit, they are never interrupted
// mid-record.
func (p *CheckPool[R]) Start(ctx context.Context) error {
	if !p.state.CompareAndSwap(poolCreated, poolRunning) {
		return types.ErrPoolStarted
	}

	// workers keep ctx's values but not its cancellation
	runCtx := context.WithoutCancel(ctx)
	for _, w := range p.workers {
		p.group.Go(func() error {
			return w.Run(runCtx)
		})
	}

	go func() {
		p.groupErr = p.group.Wait()
		close(p.finished)
	}()

	context.AfterFunc(ctx, p.StopAll)

	klog.FromContext(ctx).V(2).Info("Check pool started",
		"workers", len(p.workers), "queueCapacity", p.config.QueueCapacity)
	return nil
}

// Submit routes record to the queue of worker workerID, blocking while that
// queue is full. A record accepted here is guaranteed to be processed as
// long as every worker initializes. When an Init fails, workers after the
// failed one never start and records already queued for them stay unprocessed;
// AwaitCompletion then reports the InitializationError.
func (p *CheckPool[R]) Submit(ctx context.Context, workerID int, record R) error {
	w, err := p.target(workerID)
	if err != nil {
		return err
	}

	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.stopping.Load() {
		return types.ErrPoolStopped
	}
	select {
	case <-w.terminated:
		return types.ErrWorkerTerminated
	default:
	}
	if err := w.queue.offer(ctx, record, w.terminated); err != nil {
		return err
	}

	p.submitted.Add(1)
	p.config.Metrics.submitted()
	return nil
}

// TrySubmit is Submit without blocking; it reports false when the queue is full
func (p *CheckPool[R]) TrySubmit(workerID int, record R) (bool, error) {
	w, err := p.target(workerID)
	if err != nil {
		return false, err
	}

	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.stopping.Load() {
		return false, types.ErrPoolStopped
	}
	select {
	case <-w.terminated:
		return false, types.ErrWorkerTerminated
	default:
	}
	if !w.queue.TryOffer(record) {
		return false, nil
	}

	p.submitted.Add(1)
	p.config.Metrics.submitted()
	return true, nil
}

func (p *CheckPool[R]) target(workerID int) (*RecordCheckWorker[R], error) {
	if p.state.Load() == poolCreated {
		return nil, types.ErrPoolNotStarted
	}
	if workerID < 0 || workerID >= len(p.workers) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", types.ErrInvalidWorker, workerID, len(p.workers))
	}
	return p.workers[workerID], nil
}

// StopAll rejects further submissions and asks every worker to drain its
// queue and exit. It is idempotent and returns immediately.
func (p *CheckPool[R]) StopAll() {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		go func() {
			// wait out submissions that were accepted before the stop
			p.submitMu.Lock()
			defer p.submitMu.Unlock()
			for _, w := range p.workers {
				w.Done()
			}
		}()
	})
}

// AwaitCompletion blocks until every worker has terminated and returns the
// first fatal failure, if any. If ctx is done first it returns ctx.Err() and
// the workers keep running until they observe StopAll.
func (p *CheckPool[R]) AwaitCompletion(ctx context.Context) error {
	if p.state.Load() == poolCreated {
		return types.ErrPoolNotStarted
	}

	select {
	case <-p.finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.failures.Err(); err != nil {
		return err
	}
	return p.groupErr
}

// Size returns the number of workers
func (p *CheckPool[R]) Size() int {
	return len(p.workers)
}

// Worker returns the worker with the given id
func (p *CheckPool[R]) Worker(workerID int) (*RecordCheckWorker[R], error) {
	if workerID < 0 || workerID >= len(p.workers) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", types.ErrInvalidWorker, workerID, len(p.workers))
	}
	return p.workers[workerID], nil
}

// Tracer returns the aggregate page cache tracer
func (p *CheckPool[R]) Tracer() pagecache.PageCacheTracer {
	return p.tracer
}

// Clock returns the clock the pool's workers measure time with
func (p *CheckPool[R]) Clock() types.Clock {
	return p.config.Clock
}

// Barrier returns the pool's initialization barrier
func (p *CheckPool[R]) Barrier() *InitBarrier {
	return p.barrier
}

// Stats gets pool statistics
func (p *CheckPool[R]) Stats() types.PoolStats {
	stats := types.PoolStats{
		PoolSize:       len(p.workers),
		QueueCapacity:  p.config.QueueCapacity,
		TotalSubmitted: p.submitted.Load(),
		Workers:        make([]types.WorkerStats, len(p.workers)),
	}
	for i, w := range p.workers {
		ws := w.Stats()
		stats.Workers[i] = ws
		stats.QueuedRecords += ws.QueueLength
		stats.TotalProcessed += ws.TotalProcessed
		stats.TotalFailed += ws.TotalFailed
	}
	return stats
}
