package extension

import (
	"context"
	"errors"
	"testing"

	logx "rallybot/pkg/logx"
)

func TestExecAbsentStep(t *testing.T) {
	r := NewRegistry(logx.Nop())
	if _, ok := r.Exec(context.Background(), "missing", Params{}); ok {
		t.Fatal("absent step reported ok")
	}
}

func TestExecPassesResultThrough(t *testing.T) {
	r := NewRegistry(logx.Nop())
	r.Register("enrich", func(ctx context.Context, p Params) (Result, error) {
		return Result{Context: map[string]string{"k": "v"}, Handled: true, Success: true}, nil
	})

	res, ok := r.Exec(context.Background(), "enrich", Params{UserID: "u1"})
	if !ok {
		t.Fatal("registered step reported absent")
	}
	if !res.Handled || !res.Success || res.Context["k"] != "v" {
		t.Fatalf("result = %+v", res)
	}
}

func TestExecErrorIsolated(t *testing.T) {
	r := NewRegistry(logx.Nop())
	r.Register("broken", func(ctx context.Context, p Params) (Result, error) {
		return Result{}, errors.New("boom")
	})
	if _, ok := r.Exec(context.Background(), "broken", Params{}); ok {
		t.Fatal("failing step reported ok")
	}
}

func TestExecPanicRecovered(t *testing.T) {
	r := NewRegistry(logx.Nop())
	r.Register("panics", func(ctx context.Context, p Params) (Result, error) {
		panic("handler bug")
	})
	if _, ok := r.Exec(context.Background(), "panics", Params{}); ok {
		t.Fatal("panicking step reported ok")
	}
	// Registry stays usable after a panic.
	if !r.Has("panics") {
		t.Fatal("step lost after panic")
	}
}

func TestRegisterNilRemoves(t *testing.T) {
	r := NewRegistry(logx.Nop())
	r.Register("step", func(ctx context.Context, p Params) (Result, error) { return Result{}, nil })
	if !r.Has("step") {
		t.Fatal("step not registered")
	}
	r.Register("step", nil)
	if r.Has("step") {
		t.Fatal("nil registration did not remove step")
	}
	if names := r.Names(); len(names) != 0 {
		t.Fatalf("names = %v, want empty", names)
	}
}
