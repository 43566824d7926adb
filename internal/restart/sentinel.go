// Package restart records diagnostic sentinels for session restarts so an
// external process supervisor can explain why the harness re-entered the
// Outer Loop without having to parse the session event log.
package restart

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SentinelFilename is the name of the restart sentinel file.
const SentinelFilename = "restart-sentinel.json"

// RestartKind represents why the Outer Loop re-entered.
type RestartKind string

const (
	KindContextFull     RestartKind = "context-full"
	KindUserShutdown    RestartKind = "user-shutdown"
	KindMaxTurnsOrError RestartKind = "max-turns-or-error"
)

// SentinelStats captures statistics about a session's run, attached to the
// sentinel written when the Outer Loop restarts.
type SentinelStats struct {
	SessionNumber     int     `json:"sessionNumber"`
	Turns             int     `json:"turns"`
	CarryoverMessages int     `json:"carryoverMessages,omitempty"`
	Reason            *string `json:"reason,omitempty"`
	DurationMs        int64   `json:"durationMs,omitempty"`
}

// SentinelPayload contains the main restart event data.
type SentinelPayload struct {
	Kind  RestartKind   `json:"kind"`
	Ts    int64         `json:"ts"`
	Stats SentinelStats `json:"stats"`
}

// Sentinel is the versioned wrapper for restart sentinel data.
type Sentinel struct {
	Version int             `json:"version"`
	Payload SentinelPayload `json:"payload"`
}

// ResolveSentinelPath returns the full path to the restart sentinel file
// inside the given state directory.
func ResolveSentinelPath(stateDir string) string {
	return filepath.Join(stateDir, SentinelFilename)
}

// WriteSentinel writes a restart sentinel to the state directory, overwriting
// any sentinel left by a prior session.
func WriteSentinel(stateDir string, payload SentinelPayload) error {
	sentinelPath := ResolveSentinelPath(stateDir)

	if err := os.MkdirAll(filepath.Dir(sentinelPath), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	sentinel := Sentinel{
		Version: 1,
		Payload: payload,
	}

	data, err := json.MarshalIndent(sentinel, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sentinel: %w", err)
	}

	data = append(data, '\n')
	if err := os.WriteFile(sentinelPath, data, 0644); err != nil {
		return fmt.Errorf("write sentinel: %w", err)
	}

	return nil
}

// ReadSentinel reads and validates a restart sentinel from the state
// directory. Returns nil if the file doesn't exist or is invalid; invalid
// files are deleted so they don't wedge the next read.
func ReadSentinel(stateDir string) (*Sentinel, error) {
	sentinelPath := ResolveSentinelPath(stateDir)

	data, err := os.ReadFile(sentinelPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sentinel: %w", err)
	}

	var sentinel Sentinel
	if err := json.Unmarshal(data, &sentinel); err != nil {
		_ = os.Remove(sentinelPath)
		return nil, nil
	}

	if sentinel.Version != 1 {
		_ = os.Remove(sentinelPath)
		return nil, nil
	}

	return &sentinel, nil
}

// ConsumeSentinel reads and then deletes the restart sentinel, so a later
// harness launch doesn't re-report the same restart.
func ConsumeSentinel(stateDir string) (*Sentinel, error) {
	sentinel, err := ReadSentinel(stateDir)
	if err != nil {
		return nil, err
	}
	if sentinel == nil {
		return nil, nil
	}

	sentinelPath := ResolveSentinelPath(stateDir)
	_ = os.Remove(sentinelPath)

	return sentinel, nil
}

// FormatMessage builds the one-line message a supervisor process can surface
// to an operator for a given restart kind.
func FormatMessage(kind RestartKind, sessionNumber int) string {
	switch kind {
	case KindContextFull:
		return fmt.Sprintf("session %d restarted: context window filled", sessionNumber)
	case KindUserShutdown:
		return fmt.Sprintf("session %d ended: shut down by user request", sessionNumber)
	case KindMaxTurnsOrError:
		return fmt.Sprintf("session %d ended: turn limit reached or unrecoverable error", sessionNumber)
	default:
		return fmt.Sprintf("session %d ended: %s", sessionNumber, kind)
	}
}

// Summarize creates a short human-readable summary of a sentinel payload,
// including the reason attached by the context manager, if any.
func Summarize(payload SentinelPayload) string {
	msg := FormatMessage(payload.Kind, payload.Stats.SessionNumber)
	if payload.Stats.Reason != nil && *payload.Stats.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, *payload.Stats.Reason)
	}
	return msg
}

// TrimLogTail trims a log string to at most maxChars characters, keeping the
// tail and prefixing an ellipsis when truncation occurred. Used to cap the
// size of carryover/reason text embedded in a sentinel.
func TrimLogTail(input string, maxChars int) string {
	if input == "" {
		return ""
	}

	text := input
	for len(text) > 0 && (text[len(text)-1] == ' ' || text[len(text)-1] == '\n' || text[len(text)-1] == '\r' || text[len(text)-1] == '\t') {
		text = text[:len(text)-1]
	}

	if len(text) <= maxChars {
		return text
	}

	return "..." + text[len(text)-maxChars:]
}
