package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rallybot/internal/extension"
	"rallybot/internal/storage"
	logx "rallybot/pkg/logx"
)

// Send dispatches one notification of typ to userID and records it as
// pending. The record key is (userID, typ): a repeat dispatch for the same
// pair replaces the previous record with a fresh deadline.
//
// Order of operations is deliberate: deliver first, commit state second, so
// a failed send leaves no phantom pending.
func (a *Agent) Send(ctx context.Context, userID string, typ Type, c Context) (Pending, error) {
	cfg, lim := a.snapshot()
	if !cfg.Enabled {
		return Pending{}, ErrAgentDisabled
	}
	tc, ok := cfg.Triggers[typ]
	if !ok || !tc.Enabled {
		return Pending{}, fmt.Errorf("%w: %s", ErrTriggerDisabled, typ)
	}
	if tc.TimeoutSeconds <= 0 || tc.DMTemplate == "" {
		return Pending{}, fmt.Errorf("%w: %s", ErrConfigMissing, typ)
	}

	if res, ok := a.steps.Exec(ctx, StepPreprocess, extension.Params{
		UserID:  userID,
		Type:    string(typ),
		Context: c.Vars(),
	}); ok && res.Context != nil {
		c = contextFromVars(res.Context)
	}

	ref, err := a.msgr.ResolveUser(ctx, userID)
	if err != nil {
		return Pending{}, fmt.Errorf("%w: resolve %s: %v", ErrUserUnreachable, userID, err)
	}

	if err := a.waitSend(ctx, lim); err != nil {
		return Pending{}, err
	}

	text := renderTemplate(tc.DMTemplate, c.Vars())
	msg, err := a.msgr.SendDM(ctx, ref, text)
	if err != nil {
		return Pending{}, fmt.Errorf("%w: dm %s: %v", ErrUserUnreachable, userID, err)
	}

	now := a.now()
	p := Pending{
		UserID:     userID,
		Type:       typ,
		Context:    c,
		ExpiresAt:  now.UnixMilli() + int64(tc.TimeoutSeconds)*1000,
		MessageID:  msg.ID,
		DispatchID: uuid.NewString(),
		CreatedAt:  now,
	}

	for _, evicted := range a.store.Put(&p, cfg.MaxPendingPerUser) {
		a.cleared.Add(1)
		a.publish(EventCleared, evicted, "evicted")
		a.record(storage.ActionCleared, evicted, "evicted: per-user capacity")
		a.log.Info("pending evicted",
			logx.String("user", evicted.UserID),
			logx.String("type", string(evicted.Type)))
	}

	a.sent.Add(1)
	a.publish(EventSent, p, "")
	a.record(storage.ActionSent, p, "")
	a.log.Info("notification sent",
		logx.String("user", userID),
		logx.String("type", string(typ)),
		logx.String("dispatch", p.DispatchID),
		logx.Int("timeout_s", tc.TimeoutSeconds))
	return p, nil
}

// SendQueueKeepAlive prompts a queued user to confirm they are still ready.
func (a *Agent) SendQueueKeepAlive(ctx context.Context, userID, matchName, queueID string) (Pending, error) {
	return a.Send(ctx, userID, TypeMatchQueue, Context{MatchName: matchName, QueueID: queueID})
}

// SendPreGameCheck prompts a rostered user shortly before a match starts.
func (a *Agent) SendPreGameCheck(ctx context.Context, userID, matchName string) (Pending, error) {
	return a.Send(ctx, userID, TypePreGame, Context{MatchName: matchName})
}

// SendRoleRetention asks a user to confirm continued interest in a role.
func (a *Agent) SendRoleRetention(ctx context.Context, userID, roleName string) (Pending, error) {
	return a.Send(ctx, userID, TypeRoleRetention, Context{RoleName: roleName})
}
