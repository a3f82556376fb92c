package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRunsAndWaitReturns(t *testing.T) {
	s := New(context.Background())
	var ran atomic.Bool
	s.Go("task", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !ran.Load() {
		t.Fatal("goroutine never ran")
	}
}

func TestErrorCancelsWhenConfigured(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	boom := errors.New("boom")
	s.Go("failing", func(ctx context.Context) error { return boom })

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled on error")
	}
	if err := s.Err(); !errors.Is(err, boom) {
		t.Fatalf("Err() = %v, want wrapped boom", err)
	}
}

func TestPanicRecoveredAndRecorded(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("panicky", func(ctx context.Context) error { panic("bug") })

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("panic did not cancel context")
	}
	if s.Err() == nil {
		t.Fatal("panic not recorded as error")
	}
	stats := s.Snapshot()
	if len(stats) != 1 || stats[0].Panics != 1 {
		t.Fatalf("snapshot = %+v", stats)
	}
}

func TestContextCanceledIsCleanExit(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("clean shutdown reported error: %v", err)
	}
}

func TestGoRestartRetriesUntilSuccess(t *testing.T) {
	s := New(context.Background())
	var attempts atomic.Int64
	s.GoRestart("flaky", func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}
