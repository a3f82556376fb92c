package agent

// fallbackTier is reported for types without a configured tier. Tier 2 is
// the least urgent bucket, so unknown types never jump the queue.
const fallbackTier = 2

// Tier returns the urgency tier configured for typ (0 = most urgent).
func (a *Agent) Tier(typ Type) int {
	cfg, _ := a.snapshot()
	if tc, ok := cfg.Triggers[typ]; ok && tc.Tier >= 0 {
		return tc.Tier
	}
	return fallbackTier
}
