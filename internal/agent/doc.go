// Package agent implements the notification state machine: it dispatches
// time-sensitive DM prompts, tracks each outstanding prompt's deadline,
// resolves prompts on confirmation replies, and sweeps expired ones.
//
// The agent is the single owner of the pending-notification store. All
// mutation goes through its operations; the store mutex is held only around
// in-memory changes, never across messenger calls.
package agent
