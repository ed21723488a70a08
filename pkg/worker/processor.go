package worker

import (
	"context"

	"github.com/jzx17/recordcheck/pkg/pagecache"
	"github.com/jzx17/recordcheck/pkg/types"
)

// ProcessorFunc adapts a plain function to types.RecordProcessor with a no-op Init
type ProcessorFunc[R any] func(ctx context.Context, record R, cursor pagecache.PageCursorTracer) error

// Init does nothing
func (f ProcessorFunc[R]) Init(workerID int) error {
	return nil
}

// Process calls f
func (f ProcessorFunc[R]) Process(ctx context.Context, record R, cursor pagecache.PageCursorTracer) error {
	return f(ctx, record, cursor)
}

// ProcessorAdapter lets a processor supply only the callbacks it needs
type ProcessorAdapter[R any] struct {
	InitFunc    func(workerID int) error
	ProcessFunc func(ctx context.Context, record R, cursor pagecache.PageCursorTracer) error
}

// Init calls InitFunc when set
func (a *ProcessorAdapter[R]) Init(workerID int) error {
	if a.InitFunc == nil {
		return nil
	}
	return a.InitFunc(workerID)
}

// Process calls ProcessFunc when set
func (a *ProcessorAdapter[R]) Process(ctx context.Context, record R, cursor pagecache.PageCursorTracer) error {
	if a.ProcessFunc == nil {
		return nil
	}
	return a.ProcessFunc(ctx, record, cursor)
}

// SharedProcessor returns a factory handing the same processor to every worker
func SharedProcessor[R any](processor types.RecordProcessor[R]) types.ProcessorFactory[R] {
	return func(int) types.RecordProcessor[R] {
		return processor
	}
}
