// Package storage is the optional audit trail for notification outcomes.
//
// It is best-effort: the dispatch state machine never depends on it, and a
// disabled or failing store only costs debug visibility. Pending
// notifications themselves are in-memory only and do not survive restarts.
package storage
