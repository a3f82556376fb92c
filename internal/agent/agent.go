package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"rallybot/internal/eventbus"
	"rallybot/internal/extension"
	"rallybot/internal/storage"
	"rallybot/internal/transport"
	logx "rallybot/pkg/logx"
)

// Agent is the notification dispatcher and state owner.
type Agent struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	store *Store
	msgr  transport.Messenger
	steps *extension.Registry
	bus   eventbus.Bus
	audit storage.Store
	log   logx.Logger
	now   func() time.Time

	sent      atomic.Uint64
	confirmed atomic.Uint64
	cleared   atomic.Uint64
	expired   atomic.Uint64
	rejected  atomic.Uint64
}

// Options carries the agent's collaborators. Messenger is required; the
// rest degrade to no-ops when absent.
type Options struct {
	Messenger transport.Messenger
	Steps     *extension.Registry
	Bus       eventbus.Bus
	Audit     storage.Store
	Logger    logx.Logger
	Now       func() time.Time
}

func New(cfg Config, opts Options) *Agent {
	log := opts.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	steps := opts.Steps
	if steps == nil {
		steps = extension.NewRegistry(log)
	}
	a := &Agent{
		store: NewStore(),
		msgr:  opts.Messenger,
		steps: steps,
		bus:   opts.Bus,
		audit: opts.Audit,
		log:   log.With(logx.String("component", "agent")),
		now:   now,
	}
	a.applyLocked(cfg)
	return a
}

// Apply installs a new configuration snapshot. In-flight pendings keep
// their original deadlines; only future dispatches see the new policy.
func (a *Agent) Apply(cfg Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyLocked(cfg)
}

func (a *Agent) applyLocked(cfg Config) {
	if cfg.MaxPendingPerUser <= 0 {
		cfg.MaxPendingPerUser = 3
	}
	a.cfg = cfg
	if cfg.RatePerSec > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	} else {
		a.limiter = nil
	}
}

// snapshot returns the current config and limiter without holding the lock
// across any I/O the caller performs.
func (a *Agent) snapshot() (Config, *rate.Limiter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg, a.limiter
}

func (a *Agent) waitSend(ctx context.Context, lim *rate.Limiter) error {
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

// Pending returns a copy of the open record for (userID, typ), if any.
func (a *Agent) Pending(userID string, typ Type) (Pending, bool) {
	return a.store.Get(userID, typ)
}

// Stats snapshots counters and per-type pending counts.
func (a *Agent) Stats() Stats {
	users, perType := a.store.Counts()
	return Stats{
		Users:     users,
		Pending:   perType,
		Sent:      a.sent.Load(),
		Confirmed: a.confirmed.Load(),
		Cleared:   a.cleared.Load(),
		Expired:   a.expired.Load(),
		Rejected:  a.rejected.Load(),
	}
}

func (a *Agent) publish(topic string, p Pending, reason string) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(eventbus.Event{
		Type: topic,
		Data: Event{
			UserID:     p.UserID,
			Type:       p.Type,
			DispatchID: p.DispatchID,
			MessageID:  p.MessageID,
			Reason:     reason,
			At:         a.now(),
		},
	})
}

// record appends to the audit trail best-effort; failures only cost debug
// visibility and are logged at debug level.
func (a *Agent) record(action string, p Pending, detail string) {
	if a.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := a.audit.Append(ctx, storage.Entry{
		At:         a.now(),
		UserID:     p.UserID,
		Type:       string(p.Type),
		Action:     action,
		DispatchID: p.DispatchID,
		MessageID:  p.MessageID,
		Detail:     detail,
	})
	if err != nil {
		a.log.Debug("audit append failed", logx.Err(err), logx.String("action", action))
	}
}
