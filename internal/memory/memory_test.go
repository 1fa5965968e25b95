package memory

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	m := NewMonitor(Config{
		LimitBytes:    limit,
		ResumeMark:    0.7,
		PauseMark:     0.85,
		CheckInterval: time.Hour,
	})
	m.sample = func() uint64 { return *alloc }
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LimitBytes != 0 {
		t.Errorf("LimitBytes = %d, want 0", cfg.LimitBytes)
	}
	if cfg.ResumeMark >= cfg.PauseMark {
		t.Errorf("resume mark %.2f should be below pause mark %.2f", cfg.ResumeMark, cfg.PauseMark)
	}
	if cfg.CheckInterval <= 0 {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
}

func TestMonitorPauseAndResume(t *testing.T) {
	alloc := uint64(10)
	m := newTestMonitor(100, &alloc)

	m.check()
	if m.Paused() {
		t.Fatal("10% usage should not pause")
	}
	if got := m.Usage(); got != 0.1 {
		t.Errorf("Usage() = %v, want 0.1", got)
	}

	alloc = 90
	m.check()
	if !m.Paused() {
		t.Fatal("90% usage should pause")
	}

	waited := make(chan error, 1)
	go func() { waited <- m.Wait(context.Background()) }()

	// Between the marks the monitor stays paused.
	alloc = 80
	m.check()
	select {
	case <-waited:
		t.Fatal("Wait returned before usage fell below the resume mark")
	case <-time.After(20 * time.Millisecond):
	}

	alloc = 50
	m.check()
	select {
	case err := <-waited:
		if err != nil {
			t.Errorf("Wait() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after recovery")
	}
	if m.Paused() {
		t.Error("monitor should resume below the resume mark")
	}
}

func TestMonitorWaitHonorsContext(t *testing.T) {
	alloc := uint64(99)
	m := newTestMonitor(100, &alloc)
	m.check()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	alloc := uint64(99)
	m := newTestMonitor(100, &alloc)
	m.Start()
	m.check()

	waited := make(chan error, 1)
	go func() { waited <- m.Wait(context.Background()) }()

	m.Stop()
	select {
	case err := <-waited:
		if err != nil {
			t.Errorf("Wait() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop should release waiters")
	}

	// A second Stop is harmless.
	m.Stop()
}

func TestMonitorDisabledWithoutLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	prev := debug.SetMemoryLimit(-1)
	debug.SetMemoryLimit(1<<63 - 1)
	defer debug.SetMemoryLimit(prev)

	m := NewMonitor(DefaultConfig())
	if m.Enabled() {
		t.Fatal("monitor should be disabled without a limit")
	}
	m.Start()
	defer m.Stop()

	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v", err)
	}
	if m.Usage() != 0 {
		t.Errorf("Usage() = %v, want 0", m.Usage())
	}
}

func TestApplyLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	prev := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(prev)

	tests := []struct {
		name      string
		container int64
		ratio     float64
		wantLimit int64
		source    string
	}{
		{"no container limit", 0, 0.85, 0, "none"},
		{"default ratio", 1000 * 1024 * 1024, 0.85, int64(float64(1000*1024*1024) * 0.85), "MEMORY_LIMIT"},
		{"custom ratio", 1024 * 1024 * 1024, 0.5, 512 * 1024 * 1024, "MEMORY_LIMIT"},
		{"ratio out of range", 1000, 1.5, int64(1000 * DefaultMemoryRatio), "MEMORY_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ApplyLimit(tt.container, tt.ratio)
			if result.Source != tt.source {
				t.Errorf("Source = %s, want %s", result.Source, tt.source)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Configured() != (tt.wantLimit > 0) {
				t.Errorf("Configured() = %v", result.Configured())
			}
			if tt.wantLimit > 0 && debug.SetMemoryLimit(-1) != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", debug.SetMemoryLimit(-1), tt.wantLimit)
			}
		})
	}
}

func TestApplyLimitRespectsGOMEMLIMIT(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "256MiB")
	prev := debug.SetMemoryLimit(-1)
	defer debug.SetMemoryLimit(prev)

	result := ApplyLimit(1<<30, 0.85)
	if result.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %s, want GOMEMLIMIT", result.Source)
	}
	if debug.SetMemoryLimit(-1) != prev {
		t.Error("an explicit GOMEMLIMIT must not be overridden")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{10 * 1024 * 1024, "10.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
