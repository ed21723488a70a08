package worker

import (
	"context"
	"testing"
	"time"

	"github.com/jzx17/recordcheck/internal/testutils"
	"github.com/jzx17/recordcheck/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordQueue_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		q, err := NewRecordQueue[int](capacity, nil)
		assert.Nil(t, q)
		assert.ErrorIs(t, err, types.ErrInvalidConfig)
	}
}

func TestRecordQueue_FIFO(t *testing.T) {
	q, err := NewRecordQueue[string](3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Cap())

	for _, r := range []string{"a", "b", "c"} {
		require.True(t, q.TryOffer(r))
	}
	assert.Equal(t, 3, q.Len())
	assert.False(t, q.TryOffer("d"), "queue should be full")

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.TryPoll()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := q.TryPoll()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestRecordQueue_OfferBlocksWhileFull(t *testing.T) {
	q, err := NewRecordQueue[int](1, nil)
	require.NoError(t, err)
	require.NoError(t, q.Offer(context.Background(), 1))

	offered := make(chan error, 1)
	go func() {
		offered <- q.Offer(context.Background(), 2)
	}()

	select {
	case err := <-offered:
		t.Fatalf("Offer returned on a full queue: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	got, ok := q.TryPoll()
	require.True(t, ok)
	assert.Equal(t, 1, got)

	select {
	case err := <-offered:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Offer did not resume after space was freed")
	}

	got, ok = q.TryPoll()
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestRecordQueue_OfferContextCancelled(t *testing.T) {
	q, err := NewRecordQueue[int](1, nil)
	require.NoError(t, err)
	require.True(t, q.TryOffer(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = q.Offer(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())
}

func TestRecordQueue_OfferAborted(t *testing.T) {
	q, err := NewRecordQueue[int](1, nil)
	require.NoError(t, err)
	require.True(t, q.TryOffer(1))

	abort := make(chan struct{})
	close(abort)

	err = q.offer(context.Background(), 2, abort)
	assert.ErrorIs(t, err, types.ErrWorkerTerminated)
}

func TestRecordQueue_PollTimesOut(t *testing.T) {
	mock := testutils.NewMockClock(t)
	q, err := NewRecordQueue[int](1, testutils.NewClockWrapper(mock))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		record int
		ok     bool
	}
	polled := make(chan result, 1)
	go func() {
		r, ok := q.Poll(time.Second)
		polled <- result{r, ok}
	}()

	testutils.AdvanceToNextTimer(ctx, t, mock)

	select {
	case res := <-polled:
		assert.False(t, res.ok)
		assert.Zero(t, res.record)
	case <-ctx.Done():
		t.Fatal("Poll did not time out")
	}
}

func TestRecordQueue_PollReceivesLateRecord(t *testing.T) {
	q, err := NewRecordQueue[int](1, nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Offer(context.Background(), 42)
	}()

	got, ok := q.Poll(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestRecordQueue_PollZeroTimeout(t *testing.T) {
	q, err := NewRecordQueue[int](1, nil)
	require.NoError(t, err)

	_, ok := q.Poll(0)
	assert.False(t, ok)

	require.True(t, q.TryOffer(7))
	got, ok := q.Poll(0)
	require.True(t, ok)
	assert.Equal(t, 7, got)
}

func TestRecordQueue_PollWakesEarly(t *testing.T) {
	q, err := NewRecordQueue[int](1, nil)
	require.NoError(t, err)

	wake := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(wake)
	}()

	start := time.Now()
	_, ok := q.poll(time.Minute, wake)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 10*time.Second)
}
