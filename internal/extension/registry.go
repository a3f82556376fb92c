package extension

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	logx "rallybot/pkg/logx"
)

// Params is the payload handed to an extension step.
//
// Context is the template-variable view of a notification context; a step
// may return a replacement via Result.Context. Text carries the raw reply
// for response post-processing steps. Expired lists (user, type) pairs for
// the sweep step.
type Params struct {
	UserID  string
	Type    string
	Context map[string]string
	Text    string
	Expired []ExpiredRecord
}

type ExpiredRecord struct {
	UserID string
	Type   string
}

// Result is the uniform step result. A nil Context means "no replacement".
type Result struct {
	Context map[string]string
	Handled bool
	Success bool
}

// Handler implements one named step.
type Handler func(ctx context.Context, p Params) (Result, error)

// Registry maps step names to handlers.
//
// Absence of a step is a no-op, never an error: callers probe with Has() and
// skip silently. A failing or panicking handler is isolated; Exec reports
// ok=false and the failure is only logged.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Handler
	log   logx.Logger
}

func NewRegistry(log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{steps: map[string]Handler{}, log: log}
}

// Register installs a handler under name. A nil handler removes the step.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.steps, name)
		return
	}
	r.steps[name] = h
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	_, ok := r.steps[name]
	r.mu.RUnlock()
	return ok
}

// Exec runs the named step. ok is false when the step is absent, returned an
// error, or panicked; the primary operation must proceed either way.
func (r *Registry) Exec(ctx context.Context, name string, p Params) (res Result, ok bool) {
	if r == nil {
		return Result{}, false
	}
	r.mu.RLock()
	h := r.steps[name]
	r.mu.RUnlock()
	if h == nil {
		return Result{}, false
	}

	res, err := r.safeCall(ctx, name, h, p)
	if err != nil {
		r.log.Warn("extension step failed", logx.String("step", name), logx.Err(err))
		return Result{}, false
	}
	return res, true
}

func (r *Registry) safeCall(ctx context.Context, name string, h Handler, p Params) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in extension step",
				logx.String("step", name),
				logx.Any("panic", rec),
				logx.Stack(string(debug.Stack())),
			)
			err = fmt.Errorf("panic in step %s: %v", name, rec)
		}
	}()
	return h(ctx, p)
}

// Names returns the registered step names (for status output).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.steps))
	for name := range r.steps {
		out = append(out, name)
	}
	return out
}
