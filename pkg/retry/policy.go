package retry

import (
	"context"
	"errors"
	"time"

	"github.com/jzx17/recordcheck/pkg/backoff"
	"github.com/jzx17/recordcheck/pkg/types"
)

// Condition reports whether an error may be retried
type Condition func(error) bool

// Policy decides whether and when a failed attempt is retried
type Policy struct {
	maxAttempts int
	strategy    backoff.Strategy
	condition   Condition
}

// PolicyOption configures a Policy
type PolicyOption func(*Policy)

// WithCondition replaces DefaultCondition
func WithCondition(condition Condition) PolicyOption {
	return func(p *Policy) {
		p.condition = condition
	}
}

// NewPolicy creates a policy allowing at most maxAttempts attempts, pausing
// between them as strategy says. A nil strategy retries immediately.
func NewPolicy(maxAttempts int, strategy backoff.Strategy, opts ...PolicyOption) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := &Policy{
		maxAttempts: maxAttempts,
		strategy:    strategy,
		condition:   DefaultCondition,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ShouldRetry reports whether err, returned by the given attempt, is retried
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	return p.condition(err)
}

// MaxAttempts returns the maximum number of attempts
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// NextDelay returns the pause after the given failed attempt
func (p *Policy) NextDelay(attempt int) time.Duration {
	if p.strategy == nil {
		return 0
	}
	return p.strategy.NextDelay(attempt)
}

// DefaultCondition retries errors marked with Transient. Context errors and
// pool state errors are never retried.
func DefaultCondition(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, types.ErrWorkerTerminated) || errors.Is(err, types.ErrPoolStopped) {
		return false
	}
	return IsTransient(err)
}

// TransientError marks a failure that may succeed when attempted again
type TransientError struct {
	Err error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable. It returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err, or an error it wraps, was marked Transient
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}
