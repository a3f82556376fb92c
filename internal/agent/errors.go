package agent

import "errors"

var (
	// ErrAgentDisabled rejects all dispatch while notification.enabled=false.
	ErrAgentDisabled = errors.New("notification agent disabled")

	// ErrTriggerDisabled means config has the requested type switched off
	// (or never configured); no I/O is performed.
	ErrTriggerDisabled = errors.New("trigger disabled")

	// ErrConfigMissing means an enabled trigger lacks a timeout or template.
	// This is a configuration fault, not a dispatch-time default.
	ErrConfigMissing = errors.New("trigger configuration missing")

	// ErrUserUnreachable means resolution or delivery failed; no state was
	// recorded and the caller may retry externally.
	ErrUserUnreachable = errors.New("user unreachable")

	// ErrNoMatchingPending means a reply (or clear) matched no open
	// notification. Informational, not fatal.
	ErrNoMatchingPending = errors.New("no matching pending notification")
)
