package agent

import (
	"context"
	"strings"

	"rallybot/internal/extension"
	"rallybot/internal/storage"
	logx "rallybot/pkg/logx"
)

// HandleResponse resolves an inbound free-text reply against the user's
// pending notifications. Matching is keyword-per-type and case-insensitive;
// the keyword may appear anywhere in the text. When several pendings could
// match the same reply, the oldest one wins.
//
// Returns ErrNoMatchingPending when the reply resolves nothing.
//
// Replies keep resolving while the agent is disabled. Disabling only stops
// new dispatches; a user who already got a prompt must still be able to
// confirm it instead of being reported as a timeout later.
func (a *Agent) HandleResponse(ctx context.Context, userID, text string) (Pending, error) {
	cfg, _ := a.snapshot()
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Pending{}, ErrNoMatchingPending
	}

	for _, p := range a.store.User(userID) {
		kw := strings.ToLower(cfg.Triggers[p.Type].ConfirmKeyword)
		if kw == "" || !strings.Contains(lower, kw) {
			continue
		}
		// Re-check under the store lock; the sweeper may have taken it.
		got, ok := a.store.Remove(userID, p.Type)
		if !ok {
			continue
		}
		a.confirmed.Add(1)
		a.publish(EventConfirmed, got, "")
		a.record(storage.ActionConfirmed, got, "")
		a.log.Info("notification confirmed",
			logx.String("user", userID),
			logx.String("type", string(got.Type)),
			logx.String("dispatch", got.DispatchID))

		a.steps.Exec(ctx, StepPostResponse, extension.Params{
			UserID:  userID,
			Type:    string(got.Type),
			Context: got.Context.Vars(),
			Text:    text,
		})
		return got, nil
	}

	// A known keyword with nothing pending is a stale or duplicate reply.
	for typ, tc := range cfg.Triggers {
		if !tc.Enabled || tc.ConfirmKeyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(tc.ConfirmKeyword)) {
			a.rejected.Add(1)
			rej := Pending{UserID: userID, Type: typ}
			a.publish(EventRejected, rej, "no pending")
			a.record(storage.ActionRejected, rej, "keyword without pending")
			a.log.Debug("stale confirmation",
				logx.String("user", userID),
				logx.String("type", string(typ)))
			break
		}
	}
	return Pending{}, ErrNoMatchingPending
}

// Clear removes the pending record for (userID, typ) without confirming it.
// Returns ErrNoMatchingPending when there was nothing to clear.
func (a *Agent) Clear(userID string, typ Type) error {
	p, ok := a.store.Remove(userID, typ)
	if !ok {
		return ErrNoMatchingPending
	}
	a.cleared.Add(1)
	a.publish(EventCleared, p, "manual")
	a.record(storage.ActionCleared, p, "manual clear")
	a.log.Info("notification cleared",
		logx.String("user", userID),
		logx.String("type", string(typ)))
	return nil
}
