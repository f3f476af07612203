// Package session holds per-user conversational state for the CS handoff
// flow. It is transport-agnostic so the router can be tested against fakes
// and reused across messenger backends.
package session

import "time"

// State identifies a conversational step in the support flow.
type State string

const (
	// StateMainMenu indicates the user is handled by the bot itself.
	StateMainMenu State = "main_menu"
	// StateWaitingCS indicates the user asked for an operator and the
	// response timeout is running.
	StateWaitingCS State = "waiting_cs"
	// StateChattingCS indicates an operator accepted the chat; user
	// messages are forwarded verbatim.
	StateChattingCS State = "chatting_cs"
)

// Timer is the cancellable handle returned by ArmTimeout.
// *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// NewTimerFunc constructs a timer that fires fn once after d.
// Injectable so tests can fire timers deterministically.
type NewTimerFunc func(d time.Duration, fn func()) Timer

// Store owns the per-user session map. Implementations must serialize
// access; timer callbacks may run concurrently with inbound handling.
type Store interface {
	// GetState returns the current state, StateMainMenu for unknown users.
	GetState(userID string) State
	// SetState overwrites the state and emits a state-change event even
	// when the new state equals the current one.
	SetState(userID string, st State)
	// ArmTimeout schedules onFire after d and records the chat start time.
	// Arming over a live timer replaces it: the previous timer is stopped
	// and never fires.
	ArmTimeout(userID string, d time.Duration, onFire func()) Timer
	// DisarmTimeout stops any pending timer and clears the chat record.
	// It reports whether a timer was actually disarmed.
	DisarmTimeout(userID string) bool
	// ChatStartedAt returns when the currently armed handoff began.
	ChatStartedAt(userID string) (time.Time, bool)
}
