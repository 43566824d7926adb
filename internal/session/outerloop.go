package session

import (
	"context"
	"fmt"

	"github.com/binarymuse/ouroboros/internal/models"
	"github.com/binarymuse/ouroboros/internal/restart"
	"github.com/binarymuse/ouroboros/internal/workspace"
)

// DriverFactory builds a fresh Session Driver for one Outer Loop iteration.
// sessionNumber starts at 1 and increments on every restart.
type DriverFactory func(sessionNumber int) *Driver

// OuterLoop re-invokes the Session Driver across restarts, re-reading the
// system prompt from disk on every iteration and carrying conversation
// state forward across a ContextFull boundary. It owns nothing about the
// conversation itself; that belongs entirely to whichever Driver is
// currently running.
type OuterLoop struct {
	WorkspaceRoot string
	StateDir      string

	// AutoRestart mirrors context.auto_restart: when false, a ContextFull
	// verdict stops the loop instead of silently starting session N+1,
	// since confirming with an operator is an external-collaborator
	// concern this harness doesn't implement.
	AutoRestart bool

	// MaxRestarts bounds how many sessions the loop will run; nil means
	// unbounded.
	MaxRestarts *int

	NewDriver DriverFactory
}

// Run drives sessions until UserShutdown, MaxTurnsOrError, a restart cap,
// or a non-auto-restart ContextFull verdict ends the loop.
func (o *OuterLoop) Run(ctx context.Context, shutdownAll func()) (models.SessionResult, error) {
	sessionNumber := 1
	var carryover []models.Message

	for {
		systemPrompt, err := workspace.LoadSystemPrompt(o.WorkspaceRoot)
		if err != nil {
			return models.SessionResult{}, fmt.Errorf("load system prompt for session %d: %w", sessionNumber, err)
		}

		driver := o.NewDriver(sessionNumber)
		driver.SessionNumber = sessionNumber

		result, err := driver.Run(ctx, systemPrompt, carryover)
		if err != nil {
			if shutdownAll != nil {
				shutdownAll()
			}
			return result, err
		}

		switch result.Kind {
		case models.ResultUserShutdown, models.ResultMaxTurnsOrError:
			o.writeSentinel(result, sessionNumber)
			if shutdownAll != nil {
				shutdownAll()
			}
			return result, nil

		case models.ResultContextFull:
			o.writeSentinel(result, sessionNumber)

			if o.MaxRestarts != nil && sessionNumber >= *o.MaxRestarts {
				if shutdownAll != nil {
					shutdownAll()
				}
				return result, nil
			}
			if !o.AutoRestart {
				// Prompting an operator for confirmation before restarting
				// is an external-collaborator concern; without one
				// attached, treat this the same as exhausting MaxRestarts.
				if shutdownAll != nil {
					shutdownAll()
				}
				return result, nil
			}

			carryover = result.Carryover
			sessionNumber++

		default:
			if shutdownAll != nil {
				shutdownAll()
			}
			return result, fmt.Errorf("unrecognized session result kind %q", result.Kind)
		}
	}
}

func (o *OuterLoop) writeSentinel(result models.SessionResult, sessionNumber int) {
	if o.StateDir == "" {
		return
	}

	var kind restart.RestartKind
	switch result.Kind {
	case models.ResultUserShutdown:
		kind = restart.KindUserShutdown
	case models.ResultContextFull:
		kind = restart.KindContextFull
	default:
		kind = restart.KindMaxTurnsOrError
	}

	var reason *string
	if result.Reason != "" {
		r := restart.TrimLogTail(result.Reason, 2000)
		reason = &r
	}

	_ = restart.WriteSentinel(o.StateDir, restart.SentinelPayload{
		Kind: kind,
		Stats: restart.SentinelStats{
			SessionNumber:     sessionNumber,
			Turns:             result.Turns,
			CarryoverMessages: len(result.Carryover),
			Reason:            reason,
		},
	})
}
