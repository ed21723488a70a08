package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/recordcheck/internal/testutils"
	"github.com/jzx17/recordcheck/pkg/pagecache"
	"github.com/jzx17/recordcheck/pkg/types"
)

func TestCheckPool_NoRecordLossWhenStopRaces(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping race test in short mode")
	}

	const (
		workers   = 8
		producers = 4
		perProd   = 2000
	)

	for round := 0; round < 5; round++ {
		t.Run(fmt.Sprintf("round-%d", round), func(t *testing.T) {
			processor := testutils.NewRecordingProcessor[string]()
			pool, err := NewCheckPool(SharedProcessor[string](processor), nil, testPoolConfig(workers, 4))
			require.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, pool.Start(ctx))

			var accepted sync.Map
			var acceptedCount, rejectedCount atomic.Int64
			var sent atomic.Int64

			var wg sync.WaitGroup
			for p := 0; p < producers; p++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for i := 0; i < perProd; i++ {
						record := fmt.Sprintf("p%d-r%d", p, i)
						err := pool.Submit(ctx, (p+i)%workers, record)
						sent.Add(1)
						switch {
						case err == nil:
							accepted.Store(record, struct{}{})
							acceptedCount.Add(1)
						case errors.Is(err, types.ErrPoolStopped):
							rejectedCount.Add(1)
						default:
							t.Errorf("unexpected submit error: %v", err)
							return
						}
					}
				}(p)
			}

			// stop somewhere in the middle of the submissions
			for sent.Load() < int64(producers*perProd/(round+2)) {
				time.Sleep(100 * time.Microsecond)
			}
			pool.StopAll()
			wg.Wait()

			require.NoError(t, awaitPool(t, pool))

			assert.Equal(t, int64(producers*perProd), acceptedCount.Load()+rejectedCount.Load())
			assert.Equal(t, int(acceptedCount.Load()), processor.Total())
			assert.Equal(t, acceptedCount.Load(), pool.Stats().TotalSubmitted)

			counts := processor.Counts()
			accepted.Range(func(key, _ any) bool {
				assert.Equal(t, 1, counts[key.(string)], "record %s", key)
				return true
			})
			for record, n := range counts {
				_, ok := accepted.Load(record)
				assert.True(t, ok, "record %s was processed but never accepted", record)
				assert.Equal(t, 1, n, "record %s", record)
			}
		})
	}
}

func TestCheckPool_TracerAggregation(t *testing.T) {
	const (
		workers   = 8
		perWorker = 1000
	)

	tracer := pagecache.NewDefaultPageCacheTracer()
	processor := testutils.NewRecordingProcessor[int]()
	pool, err := NewCheckPool(SharedProcessor[int](processor), tracer, testPoolConfig(workers, 16))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := pool.Submit(ctx, id, id*perWorker+i); err != nil {
					t.Errorf("submit to worker %d: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	pool.StopAll()
	require.NoError(t, awaitPool(t, pool))

	assert.Equal(t, int64(workers*perWorker), tracer.Pins())
	assert.Equal(t, int64(workers*perWorker), tracer.Unpins())
	for id := 0; id < workers; id++ {
		assert.Equal(t, int64(perWorker), tracer.WorkerCounts(id).Pins, "worker %d", id)
		assert.Len(t, processor.Seen(id), perWorker, "worker %d", id)
	}
	assert.Len(t, tracer.WorkerIDs(), workers)
}

func TestCheckPool_PerWorkerProcessors(t *testing.T) {
	const workers = 4

	processors := make([]*testutils.RecordingProcessor[int], workers)
	for i := range processors {
		processors[i] = testutils.NewRecordingProcessor[int]()
	}
	factory := func(workerID int) types.RecordProcessor[int] {
		return processors[workerID]
	}

	pool, err := NewCheckPool(factory, nil, testPoolConfig(workers, 4))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	for i := 0; i < 40; i++ {
		require.NoError(t, pool.Submit(ctx, i%workers, i))
	}
	pool.StopAll()

	awaitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, pool.AwaitCompletion(awaitCtx))

	for id, p := range processors {
		assert.Equal(t, []int{id}, p.InitOrder(), "processor %d", id)
		assert.Equal(t, 10, p.Total(), "processor %d", id)
		for _, r := range p.Seen(id) {
			assert.Equal(t, id, r%workers)
		}
	}
}

func TestCheckPool_SlowInitBackpressure(t *testing.T) {
	release := make(chan struct{})
	processor := testutils.NewRecordingProcessor[int]()
	processor.OnInit = func(workerID int) error {
		if workerID == 0 {
			<-release
		}
		return nil
	}

	pool, err := NewCheckPool(SharedProcessor[int](processor), nil, testPoolConfig(2, 2))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))

	// worker 1 cannot start until worker 0 finished Init, so its queue fills up
	require.NoError(t, pool.Submit(ctx, 1, 1))
	require.NoError(t, pool.Submit(ctx, 1, 2))
	ok, err := pool.TrySubmit(1, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	w1, err := pool.Worker(1)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return w1.State() == types.WorkerStateAwaitingTurn
	}, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, pool.Submit(ctx, 1, 3))
	pool.StopAll()
	require.NoError(t, awaitPool(t, pool))

	assert.Equal(t, []int{1, 2, 3}, processor.Seen(1))
}

func BenchmarkCheckPool_Submit(b *testing.B) {
	tracer := pagecache.NewDefaultPageCacheTracer()
	processor := ProcessorFunc[int](func(_ context.Context, record int, cursor pagecache.PageCursorTracer) error {
		cursor.BeginPin(false, int64(record)).Done()
		return nil
	})

	config := DefaultCheckPoolConfig()
	pool, err := NewCheckPool(SharedProcessor[int](processor), tracer, config)
	if err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := pool.Submit(ctx, i%config.WorkerCount, i); err != nil {
			b.Fatal(err)
		}
	}
	pool.StopAll()
	if err := pool.AwaitCompletion(ctx); err != nil {
		b.Fatal(err)
	}
}
