package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "rallybot/pkg/logx"
)

type countingRunner struct {
	n atomic.Int64
}

func (c *countingRunner) CheckExpirations(ctx context.Context) int {
	c.n.Add(1)
	return 0
}

func TestSweepCallsRunner(t *testing.T) {
	r := &countingRunner{}
	s := New(Config{Interval: time.Hour}, r, logx.Nop())
	s.Sweep(context.Background())
	if got := r.n.Load(); got != 1 {
		t.Fatalf("runner calls = %d, want 1", got)
	}
}

func TestIntervalLoopTicks(t *testing.T) {
	r := &countingRunner{}
	s := New(Config{Interval: 10 * time.Millisecond}, r, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop(ctx)

	deadline := time.After(2 * time.Second)
	for r.n.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("runner calls = %d after 2s, want >= 2", r.n.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestKickTriggersImmediateSweep(t *testing.T) {
	r := &countingRunner{}
	s := New(Config{Interval: time.Hour}, r, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop(ctx)

	s.Kick()
	deadline := time.After(2 * time.Second)
	for r.n.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("kick did not trigger a sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestInvalidCronFallsBackToInterval(t *testing.T) {
	r := &countingRunner{}
	s := New(Config{Interval: 10 * time.Millisecond, CronSpec: "not a cron"}, r, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop(ctx)

	deadline := time.After(2 * time.Second)
	for r.n.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("fallback interval loop never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestApplyRestartsOnCadenceChange(t *testing.T) {
	r := &countingRunner{}
	s := New(Config{Interval: time.Hour}, r, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop(ctx)

	s.Apply(ctx, Config{Interval: 10 * time.Millisecond})
	deadline := time.After(2 * time.Second)
	for r.n.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("new cadence never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartIsIdempotent(t *testing.T) {
	r := &countingRunner{}
	s := New(Config{Interval: time.Hour}, r, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop(ctx)
	s.Stop(ctx)
}
