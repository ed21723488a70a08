// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrPoolNotStarted indicates records were submitted before Start
	ErrPoolNotStarted = errors.New("check pool is not started")

	// ErrPoolStarted indicates Start was called twice
	ErrPoolStarted = errors.New("check pool is already started")

	// ErrPoolStopped indicates records were submitted after StopAll
	ErrPoolStopped = errors.New("check pool is stopped")

	// ErrInvalidWorker indicates a worker id outside 0..N-1
	ErrInvalidWorker = errors.New("invalid worker id")

	// ErrInvalidConfig indicates an unusable pool or barrier configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrWorkerTerminated indicates the target worker has already exited
	ErrWorkerTerminated = errors.New("worker is terminated")

	// ErrBarrierPoisoned indicates an earlier worker failed its initialization
	ErrBarrierPoisoned = errors.New("initialization barrier is poisoned")

	// ErrTurnTaken indicates a worker id asked for its barrier turn twice
	ErrTurnTaken = errors.New("initialization turn already taken")

	// ErrWorkerStarted indicates a worker was run twice
	ErrWorkerStarted = errors.New("worker is already started")
)

// InitializationError reports a failed one-time worker initialization.
// A pool that produced one is broken and cannot recover.
type InitializationError struct {
	// WorkerID is the worker whose Init failed
	WorkerID int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *InitializationError) Error() string {
	return fmt.Sprintf("worker %d initialization failed: %v", e.WorkerID, e.Cause)
}

// Unwrap returns the underlying error
func (e *InitializationError) Unwrap() error {
	return e.Cause
}

// NewInitializationError creates a new initialization error
func NewInitializationError(workerID int, cause error) *InitializationError {
	return &InitializationError{WorkerID: workerID, Cause: cause}
}

// ProcessingError reports an unexpected fault while validating a single record
type ProcessingError[R any] struct {
	// WorkerID is the worker that processed the record
	WorkerID int

	// Record is the record that caused the error (type-safe)
	Record R

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *ProcessingError[R]) Error() string {
	return fmt.Sprintf("worker %d failed to process record %v: %v", e.WorkerID, e.Record, e.Cause)
}

// Unwrap returns the underlying error
func (e *ProcessingError[R]) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *ProcessingError[R]) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewProcessingError creates a new type-safe processing error
func NewProcessingError[R any](workerID int, record R, cause error) *ProcessingError[R] {
	return &ProcessingError[R]{
		WorkerID: workerID,
		Record:   record,
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *ProcessingError[R]) WithContext(key string, value interface{}) *ProcessingError[R] {
	e.Context[key] = value
	return e
}

// PanicError wraps a value recovered from a panicking Init or Process call
type PanicError struct {
	Value interface{}
	Stack string
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it was itself an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
