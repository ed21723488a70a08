package pagecache

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPageCacheTracer_PinLifecycle(t *testing.T) {
	tracer := NewDefaultPageCacheTracer()
	cursor := tracer.CursorTracer(3)

	assert.Equal(t, 3, cursor.WorkerID())

	pin := cursor.BeginPin(false, 1)
	pin.Hit()
	pin.Done()

	pin = cursor.BeginPin(true, 2)
	fault := pin.BeginPageFault()
	fault.AddBytes(8192)
	fault.Done()
	pin.Done()

	expected := Counts{Pins: 2, Unpins: 2, Hits: 1, Faults: 1, BytesRead: 8192}
	assert.Equal(t, expected, cursor.Counts())
	assert.Equal(t, expected, tracer.Snapshot())
	assert.Equal(t, expected, tracer.WorkerCounts(3))
	assert.Equal(t, 0.5, tracer.Snapshot().HitRatio())
}

func TestDefaultPageCacheTracer_EventsCountOnce(t *testing.T) {
	tracer := NewDefaultPageCacheTracer()
	cursor := tracer.CursorTracer(0)

	pin := cursor.BeginPin(false, 7)
	pin.Hit()
	pin.Hit()
	fault := pin.BeginPageFault()
	fault.AddBytes(10)
	fault.Done()
	fault.Done()
	fault.AddBytes(10)
	pin.Done()
	pin.Done()
	pin.Hit()

	assert.Equal(t, Counts{Pins: 1, Unpins: 1, Hits: 1, Faults: 1, BytesRead: 10}, tracer.Snapshot())
}

func TestDefaultPageCacheTracer_SameHandlePerWorker(t *testing.T) {
	tracer := NewDefaultPageCacheTracer()

	first := tracer.CursorTracer(1)
	second := tracer.CursorTracer(1)
	assert.Same(t, first, second)

	first.BeginPin(false, 1).Done()
	second.BeginPin(false, 2).Done()

	assert.Equal(t, int64(2), tracer.Pins())
	assert.Equal(t, int64(2), tracer.WorkerCounts(1).Pins)
	assert.Equal(t, []int{1}, tracer.WorkerIDs())
}

func TestDefaultPageCacheTracer_UnknownWorker(t *testing.T) {
	tracer := NewDefaultPageCacheTracer()
	assert.Equal(t, Counts{}, tracer.WorkerCounts(42))
	assert.Empty(t, tracer.WorkerIDs())
}

func TestDefaultPageCacheTracer_ConcurrentAggregation(t *testing.T) {
	const workers = 8
	const events = 1000

	tracer := NewDefaultPageCacheTracer()

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			cursor := tracer.CursorTracer(id)
			for i := 0; i < events; i++ {
				pin := cursor.BeginPin(false, int64(i))
				if i%2 == 0 {
					pin.Hit()
				} else {
					fault := pin.BeginPageFault()
					fault.AddBytes(1)
					fault.Done()
				}
				pin.Done()
			}
		}(id)
	}
	wg.Wait()

	total := tracer.Snapshot()
	assert.Equal(t, int64(workers*events), total.Pins)
	assert.Equal(t, int64(workers*events), total.Unpins)
	assert.Equal(t, int64(workers*events/2), total.Hits)
	assert.Equal(t, int64(workers*events/2), total.Faults)
	assert.Equal(t, int64(workers*events/2), total.BytesRead)

	var sum Counts
	for _, id := range tracer.WorkerIDs() {
		counts := tracer.WorkerCounts(id)
		assert.Equal(t, int64(events), counts.Pins, "worker %d", id)
		sum = sum.Add(counts)
	}
	assert.Equal(t, total, sum)
}

func TestNullTracer(t *testing.T) {
	cursor := Null.CursorTracer(5)
	assert.Equal(t, 5, cursor.WorkerID())

	pin := cursor.BeginPin(true, 1)
	pin.Hit()
	fault := pin.BeginPageFault()
	fault.AddBytes(100)
	fault.Done()
	pin.Done()

	assert.Equal(t, Counts{}, cursor.Counts())
	assert.Equal(t, Counts{}, Null.Snapshot())
	assert.Nil(t, Null.WorkerIDs())
}

func TestCollector(t *testing.T) {
	tracer := NewDefaultPageCacheTracer()
	tracer.CursorTracer(0).BeginPin(false, 1).Done()
	pin := tracer.CursorTracer(1).BeginPin(false, 2)
	pin.Hit()
	pin.Done()

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(NewCollector(tracer, "recordcheck")))

	expected := `
# HELP recordcheck_pagecache_pins_total Total number of page pins
# TYPE recordcheck_pagecache_pins_total counter
recordcheck_pagecache_pins_total 2
# HELP recordcheck_pagecache_worker_pins_total Page pins attributed to a worker
# TYPE recordcheck_pagecache_worker_pins_total counter
recordcheck_pagecache_worker_pins_total{worker="0"} 1
recordcheck_pagecache_worker_pins_total{worker="1"} 1
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"recordcheck_pagecache_pins_total", "recordcheck_pagecache_worker_pins_total")
	assert.NoError(t, err)
}
