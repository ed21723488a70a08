package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	perrors "github.com/jzx17/recordcheck/internal/errors"
	"github.com/jzx17/recordcheck/pkg/pagecache"
	"github.com/jzx17/recordcheck/pkg/types"
)

// DefaultPollInterval is how long an idle worker waits on its queue before
// re-checking its stop request
const DefaultPollInterval = 10 * time.Millisecond

// ErrorHandler decides whether a processing failure is fatal for the pool
type ErrorHandler = perrors.ErrorHandler

// ErrorContext describes a failed record
type ErrorContext = perrors.ErrorContext

// ContinueOnError returns the default handler: failures are logged and
// counted, the pool keeps going
func ContinueOnError() ErrorHandler {
	return perrors.NewContinueOnErrorHandler(nil)
}

// FailFast returns a handler that records every processing failure as the
// pool's failure. Workers still drain their queues.
func FailFast() ErrorHandler {
	return perrors.NewFailFastHandler()
}

// WorkerConfig defines configuration for a single record check worker
type WorkerConfig struct {
	// PollInterval bounds each wait on an empty queue
	PollInterval time.Duration

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// ErrorHandler classifies processing failures (optional, defaults to ContinueOnError)
	ErrorHandler ErrorHandler

	// Metrics receives per-record observations (optional)
	Metrics *Metrics

	// OnFailure is told about every fatal failure of the worker (optional)
	OnFailure func(error)
}

// RecordCheckWorker consumes records from its own queue and validates them.
//
// Lifecycle: Created -> AwaitingTurn -> Initializing -> Running -> Draining
// -> Terminated. Initialization is ordered by the shared InitBarrier. Once
// Done has been called and the queue is observed empty the worker
// terminates; records already queued are always processed first.
type RecordCheckWorker[R any] struct {
	id        int
	barrier   *InitBarrier
	queue     *RecordQueue[R]
	processor types.RecordProcessor[R]
	tracer    pagecache.PageCacheTracer
	cursor    pagecache.PageCursorTracer

	pollInterval time.Duration
	clock        types.Clock
	errorHandler ErrorHandler
	metrics      *Metrics
	onFailure    func(error)

	state      atomic.Int32
	started    atomic.Bool
	stopOnce   sync.Once
	stop       chan struct{}
	terminated chan struct{}
	failure    perrors.FirstError

	// statistics
	totalProcessed atomic.Int64
	totalFailed    atomic.Int64
	lastRecordTime atomic.Int64 // Unix nanosecond timestamp
}

// NewRecordCheckWorker creates a worker bound to queue and ordered by barrier
func NewRecordCheckWorker[R any](id int, barrier *InitBarrier, queue *RecordQueue[R],
	processor types.RecordProcessor[R], tracer pagecache.PageCacheTracer, config *WorkerConfig) *RecordCheckWorker[R] {
	if config == nil {
		config = &WorkerConfig{}
	}
	if tracer == nil {
		tracer = pagecache.Null
	}

	w := &RecordCheckWorker[R]{
		id:           id,
		barrier:      barrier,
		queue:        queue,
		processor:    processor,
		tracer:       tracer,
		pollInterval: config.PollInterval,
		clock:        config.Clock,
		errorHandler: config.ErrorHandler,
		metrics:      config.Metrics,
		onFailure:    config.OnFailure,
		stop:         make(chan struct{}),
		terminated:   make(chan struct{}),
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}
	if w.clock == nil {
		w.clock = types.NewRealClock()
	}
	if w.errorHandler == nil {
		w.errorHandler = ContinueOnError()
	}
	return w
}

// ID returns the worker id
func (w *RecordCheckWorker[R]) ID() int {
	return w.id
}

// State returns the current worker state
func (w *RecordCheckWorker[R]) State() types.WorkerState {
	return types.WorkerState(w.state.Load())
}

func (w *RecordCheckWorker[R]) setState(state types.WorkerState) {
	w.state.Store(int32(state))
}

// Queue returns the worker's record queue
func (w *RecordCheckWorker[R]) Queue() *RecordQueue[R] {
	return w.queue
}

// Done requests the worker to stop once its queue is empty. It is
// idempotent, safe for concurrent use and never blocks.
func (w *RecordCheckWorker[R]) Done() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

// StopRequested reports whether Done has been called
func (w *RecordCheckWorker[R]) StopRequested() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// Terminated returns a channel closed when Run has returned
func (w *RecordCheckWorker[R]) Terminated() <-chan struct{} {
	return w.terminated
}

// Run executes the worker until it is stopped and drained. It returns the
// initialization failure, or the first processing failure the error handler
// declared fatal. ctx bounds the wait for the initialization turn and is
// passed to the processor; it does not interrupt the run loop, only Done does.
func (w *RecordCheckWorker[R]) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("worker %d: %w", w.id, types.ErrWorkerStarted)
	}
	defer close(w.terminated)
	defer w.setState(types.WorkerStateTerminated)

	logger := klog.LoggerWithValues(klog.FromContext(ctx), "worker", w.id)
	ctx = klog.NewContext(ctx, logger)

	w.setState(types.WorkerStateAwaitingTurn)
	err := w.barrier.AwaitTurn(ctx, w.id, func() error {
		w.setState(types.WorkerStateInitializing)
		return w.processor.Init(w.id)
	})
	if errors.Is(err, types.ErrBarrierPoisoned) {
		// an earlier worker failed and reported it; this one never ran
		logger.V(2).Info("Worker abandoned", "reason", err)
		return err
	}
	if err != nil {
		logger.Error(err, "Worker failed to initialize")
		w.fail(err)
		return err
	}

	w.cursor = w.tracer.CursorTracer(w.id)
	w.setState(types.WorkerStateRunning)
	w.metrics.workerStarted()
	defer w.metrics.workerStopped()
	logger.V(2).Info("Worker initialized")

	for {
		record, ok := w.queue.poll(w.pollInterval, w.stop)
		if ok {
			w.processRecord(ctx, record)
			continue
		}
		if w.StopRequested() {
			break
		}
	}

	w.setState(types.WorkerStateDraining)
	logger.V(2).Info("Worker draining", "queued", w.queue.Len())
	for {
		record, ok := w.queue.TryPoll()
		if !ok {
			break
		}
		w.processRecord(ctx, record)
	}

	logger.V(2).Info("Worker terminated",
		"processed", w.totalProcessed.Load(), "failed", w.totalFailed.Load())
	return w.failure.Err()
}

// processRecord processes a single record
func (w *RecordCheckWorker[R]) processRecord(ctx context.Context, record R) {
	startTime := w.clock.Now()
	w.lastRecordTime.Store(startTime.UnixNano())

	err := w.executeProcess(ctx, record)
	elapsed := w.clock.Since(startTime)

	failed := err != nil
	if failed {
		w.totalFailed.Add(1)
		w.handleError(ctx, record, err)
	} else {
		w.totalProcessed.Add(1)
	}
	w.metrics.processed(elapsed, failed)

	if logger := klog.FromContext(ctx).V(4); logger.Enabled() {
		logger.Info("Processed record", "record", record, "elapsed", elapsed, "failed", failed)
	}
}

// executeProcess runs the processor with panic recovery
func (w *RecordCheckWorker[R]) executeProcess(ctx context.Context, record R) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			err = types.NewProcessingError(w.id, record, &types.PanicError{Value: r, Stack: string(buf[:n])}).
				WithContext("stack_trace", string(buf[:n]))
		}
	}()

	if err := w.processor.Process(ctx, record, w.cursor); err != nil {
		return types.NewProcessingError(w.id, record, err)
	}
	return nil
}

// handleError asks the error handler whether the failure is fatal
func (w *RecordCheckWorker[R]) handleError(ctx context.Context, record R, err error) {
	errCtx := perrors.NewErrorContext(err, w.id, record, w.clock.Now())
	errCtx.Metadata["state"] = w.State().String()
	errCtx.Metadata["queueLength"] = w.queue.Len()
	errCtx.Metadata["processed"] = w.totalProcessed.Load()
	if fatal := w.errorHandler.HandleError(ctx, errCtx); fatal != nil {
		klog.FromContext(ctx).Error(fatal, "Fatal record processing failure")
		w.fail(fatal)
	}
}

func (w *RecordCheckWorker[R]) fail(err error) {
	w.failure.Record(err)
	if w.onFailure != nil {
		w.onFailure(err)
	}
}

// Stats gets worker statistics
func (w *RecordCheckWorker[R]) Stats() types.WorkerStats {
	stats := types.WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: w.totalProcessed.Load(),
		TotalFailed:    w.totalFailed.Load(),
		QueueLength:    w.queue.Len(),
	}
	if ts := w.lastRecordTime.Load(); ts != 0 {
		stats.LastRecordTime = time.Unix(0, ts)
	}
	return stats
}
