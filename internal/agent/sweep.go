package agent

import (
	"context"
	"fmt"

	"rallybot/internal/extension"
	"rallybot/internal/storage"
	logx "rallybot/pkg/logx"
)

// CheckExpirations removes every pending record whose deadline has passed
// and reports each one. Removal is atomic with the scan, so a confirmation
// racing the sweep resolves exactly one way.
//
// Expiry keeps running while the agent is disabled; stale state must not
// outlive a config toggle. Returns the number of records expired.
func (a *Agent) CheckExpirations(ctx context.Context) int {
	cfg, lim := a.snapshot()

	expired := a.store.TakeExpired(a.now().UnixMilli())
	if len(expired) == 0 {
		return 0
	}

	recs := make([]extension.ExpiredRecord, 0, len(expired))
	for _, p := range expired {
		recs = append(recs, extension.ExpiredRecord{UserID: p.UserID, Type: string(p.Type)})
	}
	a.steps.Exec(ctx, StepCheckExpirations, extension.Params{Expired: recs})

	for _, p := range expired {
		a.expired.Add(1)
		a.publish(EventExpired, p, "timeout")
		a.record(storage.ActionExpired, p, "")
		a.log.Info("notification expired",
			logx.String("user", p.UserID),
			logx.String("type", string(p.Type)),
			logx.String("dispatch", p.DispatchID))

		if cfg.FallbackChannelID == "" {
			continue
		}
		if err := a.waitSend(ctx, lim); err != nil {
			a.log.Warn("fallback notice aborted", logx.Err(err))
			return len(expired)
		}
		notice := fmt.Sprintf("%s did not confirm %s in time", p.UserID, p.Type)
		if _, err := a.msgr.SendChannel(ctx, cfg.FallbackChannelID, notice); err != nil {
			a.log.Warn("fallback notice failed",
				logx.Err(err),
				logx.String("user", p.UserID),
				logx.String("type", string(p.Type)))
		}
	}
	return len(expired)
}
