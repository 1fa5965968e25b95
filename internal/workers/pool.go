package workers

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Gauge is the subset of a Prometheus gauge the pool reports occupancy to.
type Gauge interface {
	Inc()
	Dec()
}

// Gate holds back new jobs, for example while memory is short.
type Gate interface {
	Wait(ctx context.Context) error
}

// Pool bounds how many jobs run at once. Jobs run on the caller's goroutine
// once a slot is free, so callers keep their own error handling and results.
type Pool struct {
	sem  *semaphore.Weighted
	size int
	busy Gauge
	gate Gate
}

// NewPool creates a pool with size slots. A size below 1 is treated as 1.
// busy may be nil.
func NewPool(size int, busy Gauge) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
		busy: busy,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// SetGate makes Do wait on g before taking a slot. Call it before the pool
// is shared.
func (p *Pool) SetGate(g Gate) {
	p.gate = g
}

// Do waits for the gate and a free slot, then runs fn. Waiting honors ctx;
// once fn has started it runs to completion regardless of ctx.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if p.gate != nil {
		if err := p.gate.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for memory: %w", err)
		}
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for worker slot: %w", err)
	}
	defer p.sem.Release(1)

	if p.busy != nil {
		p.busy.Inc()
		defer p.busy.Dec()
	}

	return fn()
}
