// Package errors provides the failure policies applied to record processing errors
package errors

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"
)

// ErrorHandler decides whether a processing failure is fatal for the pool
type ErrorHandler interface {
	// HandleError returns nil when the failure is absorbed, or the error to
	// record as the pool's fatal failure
	HandleError(ctx context.Context, errCtx *ErrorContext) error

	// Name returns the name of the error handler
	Name() string
}

// ErrorContext describes a failed record
type ErrorContext struct {
	// Error that occurred
	Error error

	// WorkerID is the worker that processed the record
	WorkerID int

	// Record is the record that failed
	Record interface{}

	// Timestamp when the error occurred
	Timestamp time.Time

	// Metadata describes the worker at the time of the failure
	Metadata map[string]interface{}
}

// keysAndValues returns the context as structured logging pairs
func (c *ErrorContext) keysAndValues() []interface{} {
	kvs := []interface{}{"worker", c.WorkerID, "record", c.Record}
	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kvs = append(kvs, k, c.Metadata[k])
	}
	return kvs
}

// NewErrorContext creates a new error context
func NewErrorContext(err error, workerID int, record interface{}, now time.Time) *ErrorContext {
	return &ErrorContext{
		Error:     err,
		WorkerID:  workerID,
		Record:    record,
		Timestamp: now,
		Metadata:  make(map[string]interface{}),
	}
}

// FailFastHandler turns every processing failure into a pool failure
type FailFastHandler struct{}

// NewFailFastHandler creates a new fail-fast handler
func NewFailFastHandler() *FailFastHandler {
	return &FailFastHandler{}
}

// HandleError implements the ErrorHandler interface
func (h *FailFastHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	return errCtx.Error
}

// Name returns the handler name
func (h *FailFastHandler) Name() string {
	return "FailFast"
}

// ContinueOnErrorHandler logs processing failures and lets the worker go on
type ContinueOnErrorHandler struct {
	ignoredErrorTypes map[reflect.Type]bool
	logErrors         bool
	ignored           atomic.Int64
}

// ContinueOnErrorConfig contains configuration for continue-on-error handler
type ContinueOnErrorConfig struct {
	// IgnoredErrorTypes restricts which error types are absorbed; empty means all
	IgnoredErrorTypes []error
	// LogErrors determines whether to log ignored errors
	LogErrors bool
}

// NewContinueOnErrorHandler creates a continue-on-error handler
func NewContinueOnErrorHandler(config *ContinueOnErrorConfig) *ContinueOnErrorHandler {
	handler := &ContinueOnErrorHandler{
		ignoredErrorTypes: make(map[reflect.Type]bool),
		logErrors:         true,
	}

	if config != nil {
		handler.logErrors = config.LogErrors
		for _, errType := range config.IgnoredErrorTypes {
			if errType != nil {
				handler.ignoredErrorTypes[reflect.TypeOf(errType)] = true
			}
		}
	}

	return handler
}

// HandleError implements the ErrorHandler interface
func (h *ContinueOnErrorHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	if !h.CanHandle(errCtx.Error) {
		return errCtx.Error
	}

	h.ignored.Add(1)
	if h.logErrors {
		klog.FromContext(ctx).Error(errCtx.Error, "Record processing failed, continuing",
			errCtx.keysAndValues()...)
	}
	return nil
}

// Name returns the handler name
func (h *ContinueOnErrorHandler) Name() string {
	return "ContinueOnError"
}

// CanHandle reports whether err is absorbed by this handler
func (h *ContinueOnErrorHandler) CanHandle(err error) bool {
	if len(h.ignoredErrorTypes) == 0 {
		return true
	}
	return h.ignoredErrorTypes[reflect.TypeOf(err)]
}

// Ignored returns the number of failures absorbed so far
func (h *ContinueOnErrorHandler) Ignored() int64 {
	return h.ignored.Load()
}

// FirstError keeps the first error recorded into it
type FirstError struct {
	mu  sync.Mutex
	err error
}

// Record stores err if no error was recorded before and reports whether it did
func (f *FirstError) Record(err error) bool {
	if err == nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false
	}
	f.err = err
	return true
}

// Err returns the first recorded error, or nil
func (f *FirstError) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
