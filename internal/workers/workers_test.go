package workers

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name      string
		perCPU    float64
		limit     int
		minExpect int
		maxExpect int
	}{
		{"one per CPU", 1.0, 0, availableCPU, availableCPU},
		{"two per CPU", 2.0, 0, availableCPU * 2, availableCPU * 2},
		{"capped by limit", 2.0, 2, 1, 2},
		{"never below one", 0.01, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.perCPU, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.perCPU, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve(3, 8); got != 3 {
		t.Errorf("Resolve(3, 8) = %d, want 3", got)
	}
	if got := Resolve(0, 1); got != 1 {
		t.Errorf("Resolve(0, 1) = %d, want 1", got)
	}
	if got, want := Resolve(-2, 64), ForCPU(64); got != want {
		t.Errorf("Resolve(-2, 64) = %d, want %d", got, want)
	}
}

type countingGauge struct {
	current atomic.Int32
	peak    atomic.Int32
}

func (g *countingGauge) Inc() {
	n := g.current.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (g *countingGauge) Dec() { g.current.Add(-1) }

func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	gauge := &countingGauge{}
	pool := NewPool(2, gauge)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func() error {
				time.Sleep(5 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak := gauge.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if cur := gauge.current.Load(); cur != 0 {
		t.Errorf("busy gauge = %d after all jobs, want 0", cur)
	}
}

func TestPoolReturnsJobError(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, nil)
	want := errors.New("encode failed")
	if err := pool.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Do() = %v, want %v", err, want)
	}
}

func TestPoolCancelWhileWaiting(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = pool.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := false
	err := pool.Do(ctx, func() error {
		ran = true
		return nil
	})
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() = %v, want deadline exceeded", err)
	}
	if ran {
		t.Error("job should not run when the slot wait is cancelled")
	}
}

func TestNewPoolMinimumSize(t *testing.T) {
	t.Parallel()

	if got := NewPool(0, nil).Size(); got != 1 {
		t.Errorf("Size() = %d, want 1", got)
	}
}

type closedGate struct{ calls int }

func (g *closedGate) Wait(ctx context.Context) error {
	g.calls++
	<-ctx.Done()
	return ctx.Err()
}

func TestPoolGate(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, nil)
	gate := &closedGate{}
	pool.SetGate(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := false
	err := pool.Do(ctx, func() error {
		ran = true
		return nil
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() = %v, want deadline exceeded", err)
	}
	if ran || gate.calls != 1 {
		t.Errorf("ran = %v, gate calls = %d", ran, gate.calls)
	}
}
