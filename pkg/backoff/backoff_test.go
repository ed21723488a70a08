package backoff

import (
	"sync"
	"testing"
	"time"

	"github.com/jzx17/recordcheck/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestFixedBackoff(t *testing.T) {
	delay := 50 * time.Microsecond
	backoff := NewFixedBackoff(delay)

	for _, attempt := range []int{1, 2, 3, 10} {
		assert.Equal(t, delay, backoff.NextDelay(attempt), "attempt %d", attempt)
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := NewExponentialBackoff(100*time.Microsecond,
		WithMultiplier(2.0),
		WithMaxDelay(time.Millisecond))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Microsecond},
		{1, 100 * time.Microsecond},
		{2, 200 * time.Microsecond},
		{3, 400 * time.Microsecond},
		{4, 800 * time.Microsecond},
		{5, time.Millisecond},  // Limited by max delay
		{10, time.Millisecond}, // Limited by max delay
		{5000, time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoff_DefaultCap(t *testing.T) {
	backoff := NewExponentialBackoff(time.Microsecond)
	assert.Equal(t, time.Millisecond, backoff.NextDelay(100))
}

func TestJitter(t *testing.T) {
	delay := 100 * time.Microsecond

	for i := 0; i < 100; i++ {
		full := FullJitter(delay)
		assert.GreaterOrEqual(t, full, time.Duration(0))
		assert.Less(t, full, delay)

		equal := EqualJitter(delay)
		assert.GreaterOrEqual(t, equal, delay/2)
		assert.Less(t, equal, delay)
	}

	assert.Equal(t, time.Duration(0), FullJitter(0))
	assert.Equal(t, time.Duration(1), EqualJitter(1))

	backoff := NewFixedBackoff(delay, WithJitter(FullJitter))
	assert.Less(t, backoff.NextDelay(1), delay)
}

// sleepRecorder is a types.Clock that records sleeps instead of performing them
type sleepRecorder struct {
	types.Clock
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *sleepRecorder) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
}

func TestSpinner_YieldsBeforeSleeping(t *testing.T) {
	clock := &sleepRecorder{Clock: types.NewRealClock()}
	spinner := NewSpinner(NewExponentialBackoff(time.Microsecond, WithMaxDelay(4*time.Microsecond)), clock)
	spinner.YieldAttempts = 2

	for attempt := 1; attempt <= 6; attempt++ {
		spinner.Wait(attempt)
	}

	assert.Equal(t, []time.Duration{
		time.Microsecond,
		2 * time.Microsecond,
		4 * time.Microsecond,
		4 * time.Microsecond,
	}, clock.sleeps)
}

func TestSpinner_Defaults(t *testing.T) {
	spinner := NewSpinner(nil, nil)
	assert.NotNil(t, spinner.Strategy)
	assert.NotNil(t, spinner.Clock)
	assert.Equal(t, DefaultYieldAttempts, spinner.YieldAttempts)
}
