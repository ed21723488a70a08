// Package backoff provides the delay strategies used by spin waits and retries
package backoff

import (
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/jzx17/recordcheck/pkg/types"
)

// Strategy computes the pause before the next attempt
type Strategy interface {
	// NextDelay calculates the delay for the given attempt, starting at 1
	NextDelay(attempt int) time.Duration
}

// FixedBackoff waits the same delay on every attempt
type FixedBackoff struct {
	delay  time.Duration
	jitter JitterFunc
}

// NewFixedBackoff creates a fixed backoff strategy
func NewFixedBackoff(delay time.Duration, opts ...Option) *FixedBackoff {
	o := applyOptions(opts)
	return &FixedBackoff{
		delay:  delay,
		jitter: o.jitter,
	}
}

// NextDelay calculates the delay for the next attempt
func (b *FixedBackoff) NextDelay(attempt int) time.Duration {
	delay := b.delay
	if b.jitter != nil {
		delay = b.jitter(delay)
	}
	return delay
}

// ExponentialBackoff grows the delay geometrically up to a cap
type ExponentialBackoff struct {
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
	jitter       JitterFunc
}

// NewExponentialBackoff creates an exponential backoff strategy
func NewExponentialBackoff(initialDelay time.Duration, opts ...Option) *ExponentialBackoff {
	o := applyOptions(opts)
	b := &ExponentialBackoff{
		initialDelay: initialDelay,
		multiplier:   2.0,
		maxDelay:     time.Millisecond,
		jitter:       o.jitter,
	}
	if o.multiplier != nil {
		b.multiplier = *o.multiplier
	}
	if o.maxDelay != nil {
		b.maxDelay = *o.maxDelay
	}
	return b
}

// NextDelay calculates the delay for the next attempt
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	delay := time.Duration(float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1)))
	// math.Pow overflows to +Inf for large attempts, which converts to a negative duration
	if delay > b.maxDelay || delay <= 0 {
		delay = b.maxDelay
	}

	if b.jitter != nil {
		delay = b.jitter(delay)
	}
	return delay
}

// JitterFunc randomizes a delay
type JitterFunc func(time.Duration) time.Duration

// FullJitter full jitter function - random within [0, delay] range
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

// EqualJitter equal jitter function - delay/2 + random(0, delay/2)
func EqualJitter(delay time.Duration) time.Duration {
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

// Option configures a backoff strategy
type Option func(*options)

type options struct {
	multiplier *float64
	maxDelay   *time.Duration
	jitter     JitterFunc
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithMultiplier sets backoff multiplier (exponential backoff only)
func WithMultiplier(multiplier float64) Option {
	return func(o *options) { o.multiplier = &multiplier }
}

// WithMaxDelay sets maximum delay time (exponential backoff only)
func WithMaxDelay(maxDelay time.Duration) Option {
	return func(o *options) { o.maxDelay = &maxDelay }
}

// WithJitter sets jitter function
func WithJitter(jitter JitterFunc) Option {
	return func(o *options) { o.jitter = jitter }
}

// Spinner paces a busy-wait loop. The first YieldAttempts attempts only yield
// the processor; later attempts sleep for the strategy's delay.
type Spinner struct {
	Strategy      Strategy
	Clock         types.Clock
	YieldAttempts int
}

// DefaultYieldAttempts is the number of yield-only attempts of a default Spinner
const DefaultYieldAttempts = 16

// NewSpinner creates a spinner sleeping on clock with the given strategy
func NewSpinner(strategy Strategy, clock types.Clock) *Spinner {
	if strategy == nil {
		strategy = NewExponentialBackoff(time.Microsecond)
	}
	if clock == nil {
		clock = types.NewRealClock()
	}
	return &Spinner{
		Strategy:      strategy,
		Clock:         clock,
		YieldAttempts: DefaultYieldAttempts,
	}
}

// Wait pauses for the given attempt number, starting at 1
func (s *Spinner) Wait(attempt int) {
	if attempt <= s.YieldAttempts {
		runtime.Gosched()
		return
	}
	if delay := s.Strategy.NextDelay(attempt - s.YieldAttempts); delay > 0 {
		s.Clock.Sleep(delay)
		return
	}
	runtime.Gosched()
}
