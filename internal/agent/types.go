package agent

import (
	"time"
)

// Type enumerates notification kinds. The set is extensible via
// configuration; these are the built-in triggers.
type Type string

const (
	TypeMatchQueue    Type = "match_queue"
	TypePreGame       Type = "pre_game"
	TypeRoleRetention Type = "role_retention"
)

// Extension step names consulted around core operations.
const (
	StepPreprocess       = "preprocess_notification"
	StepPostResponse     = "postprocess_response"
	StepCheckExpirations = "check_expirations"
)

// Context carries template substitution values for one notification.
//
// Known fields cover the built-in trigger types; Extra passes through
// extension-supplied or caller-supplied keys opaquely. On key collision the
// Extra value wins (extensions enrich on top of caller context).
type Context struct {
	MatchName string
	QueueID   string
	RoleName  string
	Extra     map[string]string
}

// Vars flattens the context into the template-variable map.
func (c Context) Vars() map[string]string {
	m := make(map[string]string, 3+len(c.Extra))
	if c.MatchName != "" {
		m["match_name"] = c.MatchName
	}
	if c.QueueID != "" {
		m["queue_id"] = c.QueueID
	}
	if c.RoleName != "" {
		m["role_name"] = c.RoleName
	}
	for k, v := range c.Extra {
		m[k] = v
	}
	return m
}

// contextFromVars rebuilds a Context from a flat variable map, pulling the
// known keys into typed fields and keeping the rest opaque.
func contextFromVars(vars map[string]string) Context {
	c := Context{}
	for k, v := range vars {
		switch k {
		case "match_name":
			c.MatchName = v
		case "queue_id":
			c.QueueID = v
		case "role_name":
			c.RoleName = v
		default:
			if c.Extra == nil {
				c.Extra = map[string]string{}
			}
			c.Extra[k] = v
		}
	}
	return c
}

// Pending is one outstanding notification awaiting confirmation or expiry.
// Records are owned exclusively by the Store; callers get copies.
type Pending struct {
	UserID     string
	Type       Type
	Context    Context
	ExpiresAt  int64 // unix milliseconds
	MessageID  string
	DispatchID string
	CreatedAt  time.Time
}

// TriggerConfig is the per-type dispatch policy (validated upstream: an
// enabled trigger always has a timeout, template and keyword by the time it
// reaches the agent).
type TriggerConfig struct {
	Enabled        bool
	Tier           int
	TimeoutSeconds int
	DMTemplate     string
	ConfirmKeyword string
}

type Config struct {
	Enabled           bool
	MaxPendingPerUser int
	RatePerSec        int
	FallbackChannelID string
	Triggers          map[Type]TriggerConfig
}

// Stats is the aggregate snapshot consumed by metrics/dashboard endpoints.
type Stats struct {
	Users     int          `json:"users"`
	Pending   map[Type]int `json:"pending"`
	Sent      uint64       `json:"sent"`
	Confirmed uint64       `json:"confirmed"`
	Cleared   uint64       `json:"cleared"`
	Expired   uint64       `json:"expired"`
	Rejected  uint64       `json:"rejected"`
}

// Event bus topics published by the agent.
const (
	EventSent      = "notify.sent"
	EventConfirmed = "notify.confirmed"
	EventCleared   = "notify.cleared"
	EventExpired   = "notify.expired"
	EventRejected  = "notify.rejected"
)

// Event is the payload for all notify.* bus events.
type Event struct {
	UserID     string    `json:"user_id"`
	Type       Type      `json:"type"`
	DispatchID string    `json:"dispatch_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}
