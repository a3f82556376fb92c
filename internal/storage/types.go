package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one notification outcome for audit/debug.
// Keep it compact and schema-stable.
type Entry struct {
	At         time.Time
	UserID     string
	Type       string
	Action     string // sent | confirmed | cleared | expired | rejected
	DispatchID string
	MessageID  string
	Detail     string
}

// Actions recorded in the audit trail.
const (
	ActionSent      = "sent"
	ActionConfirmed = "confirmed"
	ActionCleared   = "cleared"
	ActionExpired   = "expired"
	ActionRejected  = "rejected"
)
