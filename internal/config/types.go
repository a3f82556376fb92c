package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Telegram     TelegramConfig     `json:"telegram"`
	Logging      LoggingConfig      `json:"logging"`
	Notification NotificationConfig `json:"notification"`

	// Metrics controls the optional aggregate-stats HTTP endpoint.
	Metrics *MetricsConfig `json:"metrics,omitempty"`

	// Storage controls the optional dispatch audit trail.
	Storage *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TriggerConfig describes one notification type.
//
// An enabled trigger MUST carry a positive timeout and a non-empty template;
// that is validated on load/reload rather than silently defaulted at dispatch
// time. ConfirmKeyword may be omitted for the built-in types, which have
// well-known defaults (see DefaultConfirmKeyword).
type TriggerConfig struct {
	Enabled bool `json:"enabled"`
	// Tier is the escalation priority class: 0 = most urgent/interactive,
	// higher = more passive. Read for dashboards/metrics, not enforced as a
	// scheduling constraint.
	Tier           int    `json:"tier"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	DMTemplate     string `json:"dm_template"`
	ConfirmKeyword string `json:"confirm_keyword,omitempty"`
}

// NotificationConfig is the `notification` namespace.
type NotificationConfig struct {
	Enabled           bool `json:"enabled"`
	MaxPendingPerUser int  `json:"max_pending_per_user"`
	RatePerSec        int  `json:"rate_per_sec,omitempty"`

	// SweepInterval is a Go duration string. SweepCron, if set, takes
	// precedence and is a cron spec (5 or 6 fields).
	SweepInterval string `json:"sweep_interval,omitempty"`
	SweepCron     string `json:"sweep_cron,omitempty"`

	FallbackChannelID string `json:"fallback_channel_id,omitempty"`

	Triggers map[string]TriggerConfig `json:"triggers"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9215"
}

// StorageConfig controls the optional audit persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./rallybot_audit" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DefaultConfirmKeyword returns the built-in confirmation keyword for the
// well-known trigger types, or "" for unknown types.
func DefaultConfirmKeyword(typ string) string {
	switch typ {
	case "match_queue", "pre_game":
		return "!ready"
	case "role_retention":
		return "!active"
	default:
		return ""
	}
}

// Keyword returns the effective confirmation keyword for a trigger.
func (t TriggerConfig) Keyword(typ string) string {
	if kw := strings.TrimSpace(t.ConfirmKeyword); kw != "" {
		return kw
	}
	return DefaultConfirmKeyword(typ)
}

// Validate rejects notification configs that would make dispatch ambiguous
// or force silent defaults. It is called before commit on load and on every
// hot reload, so a broken trigger fails loudly instead of at send time.
func (nc NotificationConfig) Validate() error {
	if nc.MaxPendingPerUser < 0 {
		return fmt.Errorf("notification.max_pending_per_user must be >= 0")
	}
	if nc.RatePerSec < 0 {
		return fmt.Errorf("notification.rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("notification.sweep_interval", nc.SweepInterval); err != nil {
		return err
	}

	for typ, trig := range nc.Triggers {
		if !trig.Enabled {
			continue
		}
		if trig.TimeoutSeconds <= 0 {
			return fmt.Errorf("notification.triggers.%s: timeout_seconds is required for an enabled trigger", typ)
		}
		if strings.TrimSpace(trig.DMTemplate) == "" {
			return fmt.Errorf("notification.triggers.%s: dm_template is required for an enabled trigger", typ)
		}
		// Triggers may share a keyword (match_queue and pre_game both default
		// to "!ready"); replies then resolve against the oldest pending first.
		if trig.Keyword(typ) == "" {
			return fmt.Errorf("notification.triggers.%s: confirm_keyword is required (no built-in default for this type)", typ)
		}
		if trig.Tier < 0 {
			return fmt.Errorf("notification.triggers.%s: tier must be >= 0", typ)
		}
	}
	return nil
}
