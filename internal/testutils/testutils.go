// Package testutils provides test doubles shared by the check pool tests
package testutils

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jzx17/recordcheck/pkg/pagecache"
)

// RecordingProcessor remembers which worker saw which record and in what
// order workers were initialized. Every processed record pins one page.
type RecordingProcessor[R comparable] struct {
	// OnInit, when set, runs inside Init after the order was recorded
	OnInit func(workerID int) error

	// OnProcess, when set, runs inside Process after the record was recorded
	OnProcess func(ctx context.Context, record R) error

	initCounter atomic.Int64

	mu        sync.Mutex
	initOrder []int
	seen      map[int][]R
	counts    map[R]int
}

// NewRecordingProcessor creates an empty recording processor
func NewRecordingProcessor[R comparable]() *RecordingProcessor[R] {
	return &RecordingProcessor[R]{
		seen:   make(map[int][]R),
		counts: make(map[R]int),
	}
}

// Init records workerID's position in the initialization sequence
func (p *RecordingProcessor[R]) Init(workerID int) error {
	p.initCounter.Add(1)

	p.mu.Lock()
	p.initOrder = append(p.initOrder, workerID)
	p.mu.Unlock()

	if p.OnInit != nil {
		return p.OnInit(workerID)
	}
	return nil
}

// Process records the record against the cursor's worker
func (p *RecordingProcessor[R]) Process(ctx context.Context, record R, cursor pagecache.PageCursorTracer) error {
	cursor.BeginPin(false, 0).Done()

	p.mu.Lock()
	p.seen[cursor.WorkerID()] = append(p.seen[cursor.WorkerID()], record)
	p.counts[record]++
	p.mu.Unlock()

	if p.OnProcess != nil {
		return p.OnProcess(ctx, record)
	}
	return nil
}

// Inits returns how many times Init was called
func (p *RecordingProcessor[R]) Inits() int {
	return int(p.initCounter.Load())
}

// InitOrder returns worker ids in the order their Init ran
func (p *RecordingProcessor[R]) InitOrder() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.initOrder...)
}

// Seen returns the records processed by workerID, in processing order
func (p *RecordingProcessor[R]) Seen(workerID int) []R {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]R(nil), p.seen[workerID]...)
}

// Counts returns how many times each record was processed
func (p *RecordingProcessor[R]) Counts() map[R]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[R]int, len(p.counts))
	for r, n := range p.counts {
		out[r] = n
	}
	return out
}

// Total returns the number of processed records
func (p *RecordingProcessor[R]) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, n := range p.counts {
		total += n
	}
	return total
}
