package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/recordcheck/pkg/backoff"
	"github.com/jzx17/recordcheck/pkg/types"
)

// BarrierConfig defines configuration for an initialization barrier
type BarrierConfig struct {
	// Backoff paces the spin wait once yielding alone is not enough
	Backoff backoff.Strategy

	// YieldAttempts is the number of yield-only spins before sleeping
	YieldAttempts int

	// Clock for sleeping between spins (optional, defaults to real clock)
	Clock types.Clock
}

// DefaultBarrierConfig returns default configuration
func DefaultBarrierConfig() *BarrierConfig {
	return &BarrierConfig{
		Backoff:       backoff.NewExponentialBackoff(time.Microsecond, backoff.WithMaxDelay(time.Millisecond)),
		YieldAttempts: backoff.DefaultYieldAttempts,
		Clock:         types.NewRealClock(),
	}
}

// InitBarrier orders one-time worker initialization by worker id. Worker i
// initializes only after worker i-1 has published its id, so initialization
// callbacks run strictly in ascending id order even though all workers start
// at once. Ids are pre-assigned tickets; the counter starts at -1 so worker 0
// goes first.
//
// If an initialization fails the barrier is poisoned: the counter is never
// advanced again and every waiting or later caller fails with
// types.ErrBarrierPoisoned instead of waiting forever.
type InitBarrier struct {
	counter atomic.Int64
	cause   atomic.Pointer[error]
	taken   sync.Map
	spinner *backoff.Spinner
}

// NewInitBarrier creates a barrier with no worker initialized yet
func NewInitBarrier(config *BarrierConfig) *InitBarrier {
	if config == nil {
		config = DefaultBarrierConfig()
	}

	spinner := backoff.NewSpinner(config.Backoff, config.Clock)
	if config.YieldAttempts > 0 {
		spinner.YieldAttempts = config.YieldAttempts
	}

	b := &InitBarrier{spinner: spinner}
	b.counter.Store(-1)
	return b
}

// Value returns the id of the last worker that finished initialization, or -1
func (b *InitBarrier) Value() int {
	return int(b.counter.Load())
}

// Cause returns the error that poisoned the barrier, or nil
func (b *InitBarrier) Cause() error {
	if p := b.cause.Load(); p != nil {
		return *p
	}
	return nil
}

// Poisoned returns a non-nil error once the barrier is poisoned
func (b *InitBarrier) Poisoned() error {
	if cause := b.Cause(); cause != nil {
		return fmt.Errorf("%w: %w", types.ErrBarrierPoisoned, cause)
	}
	return nil
}

// Poison marks the barrier as failed; only the first cause is kept
func (b *InitBarrier) Poison(cause error) {
	if cause == nil {
		return
	}
	b.cause.CompareAndSwap(nil, &cause)
}

// AwaitTurn blocks until worker id-1 has initialized, runs init and then
// publishes id so worker id+1 may proceed. Each id may take its turn once.
//
// A failing or panicking init poisons the barrier and is returned as a
// *types.InitializationError. A worker that gives up waiting because ctx is
// done poisons the barrier as well, since its successors could never proceed.
func (b *InitBarrier) AwaitTurn(ctx context.Context, id int, init func() error) error {
	if id < 0 {
		return fmt.Errorf("%w: %d", types.ErrInvalidWorker, id)
	}
	if _, loaded := b.taken.LoadOrStore(id, struct{}{}); loaded {
		return fmt.Errorf("worker %d: %w", id, types.ErrTurnTaken)
	}

	// fast path: already our turn, a single atomic read
	for attempt := 1; b.counter.Load() != int64(id-1); attempt++ {
		if err := b.Poisoned(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			b.Poison(fmt.Errorf("worker %d abandoned its initialization turn: %w", id, err))
			return err
		}
		b.spinner.Wait(attempt)
	}
	if err := b.Poisoned(); err != nil {
		return err
	}

	if err := runInit(init); err != nil {
		initErr := types.NewInitializationError(id, err)
		b.Poison(initErr)
		return initErr
	}

	if !b.counter.CompareAndSwap(int64(id-1), int64(id)) {
		// only worker id may move the counter away from id-1
		panic(fmt.Sprintf("initialization barrier counter moved during worker %d's turn", id))
	}
	return nil
}

func runInit(init func() error) (err error) {
	if init == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			err = &types.PanicError{Value: r, Stack: string(buf[:n])}
		}
	}()

	return init()
}
