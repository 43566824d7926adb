package models

// SessionResultKind discriminates the terminal outcome of one Session
// Driver run, consumed by the Outer Loop to decide what happens next.
type SessionResultKind string

const (
	// ResultUserShutdown means the user asked the session to stop. The
	// Outer Loop exits without restarting.
	ResultUserShutdown SessionResultKind = "user_shutdown"

	// ResultContextFull means the Context Manager returned Restart. The
	// Outer Loop starts a new session, carrying over the Carryover
	// messages.
	ResultContextFull SessionResultKind = "context_full"

	// ResultMaxTurnsOrError means the session ended because it hit a turn
	// cap or an unrecoverable transport error. The Outer Loop exits.
	ResultMaxTurnsOrError SessionResultKind = "max_turns_or_error"
)

// SessionResult is the tagged union a Session Driver run returns to its
// Outer Loop caller.
type SessionResult struct {
	Kind SessionResultKind

	// Carryover holds the turn-boundary-aligned trailing history produced
	// by extract_carryover. Only populated when Kind is ResultContextFull.
	Carryover []Message

	// Reason is a short human-readable explanation, used in restart
	// sentinels and session_restart log entries.
	Reason string

	// Turns is the number of turns completed in this session run.
	Turns int
}
