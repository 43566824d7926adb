// Package session implements the Session Driver (one LLM session's turn
// loop) and the Outer Loop that re-invokes it across restarts, carrying
// conversation state over session-number boundaries on context exhaustion.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/binarymuse/ouroboros/internal/contextmgr"
	"github.com/binarymuse/ouroboros/internal/events"
	"github.com/binarymuse/ouroboros/internal/jsonllog"
	"github.com/binarymuse/ouroboros/internal/llm"
	"github.com/binarymuse/ouroboros/internal/models"
	"github.com/binarymuse/ouroboros/internal/observability"
	"github.com/binarymuse/ouroboros/internal/toolrouter"
)

// Driver executes one complete conversational session: it owns the
// conversation history exclusively and returns a terminal SessionResult.
type Driver struct {
	SessionNumber int
	MaxTurns      int // 0 = unbounded

	Provider llm.Provider
	Model    string
	Tools    []llm.ToolSchema
	Router   *toolrouter.Router

	Context        *contextmgr.Manager
	CarryoverTurns int // K in extract_carryover, applied on ResultContextFull

	Emitter *events.Emitter
	Log     *jsonllog.Writer // optional

	Shutdown *ShutdownFlag
	Pause    *PauseSignal

	// Metrics is optional; when set, every turn's LLM request and context
	// action is recorded against it.
	Metrics *observability.Metrics
}

const pauseSpinInterval = 100 * time.Millisecond

// Run drives history — system prompt followed by any carryover — through
// turns until a terminal condition is reached.
func (d *Driver) Run(ctx context.Context, systemPrompt string, carryover []models.Message) (models.SessionResult, error) {
	history := make([]models.Message, 0, len(carryover)+1)
	history = append(history, models.Message{Role: models.RoleSystem, Content: systemPrompt})
	history = append(history, carryover...)

	if d.Log != nil {
		d.Log.SessionStart(d.SessionNumber, "", d.Model)
	}

	turns := 0
	state := models.DriverStateIdle
	sessionStart := time.Now()
	for {
		if d.Shutdown != nil && d.Shutdown.IsSet() {
			return d.finishTimed(sessionStart, models.ResultUserShutdown, nil, "shutdown requested", turns), nil
		}

		if d.Pause != nil && d.Pause.IsPaused() {
			d.emitState(ctx, state, models.DriverStatePaused)
			state = models.DriverStatePaused
			for d.Pause.IsPaused() {
				if d.Shutdown != nil && d.Shutdown.IsSet() {
					return d.finishTimed(sessionStart, models.ResultUserShutdown, nil, "shutdown requested while paused", turns), nil
				}
				select {
				case <-ctx.Done():
					return d.finishTimed(sessionStart, models.ResultUserShutdown, nil, "cancelled while paused", turns), nil
				case <-time.After(pauseSpinInterval):
				}
			}
			d.emitState(ctx, state, models.DriverStateIdle)
			state = models.DriverStateIdle
		}

		d.emitState(ctx, state, models.DriverStateThinking)
		state = models.DriverStateThinking

		result, toolCalls, usage, err := d.streamTurn(ctx, history)
		if err != nil {
			if d.Emitter != nil {
				d.Emitter.Error(ctx, err.Error(), false)
			}
			if d.Log != nil {
				d.Log.Error(err.Error(), false)
			}
			if d.Metrics != nil {
				d.Metrics.RecordError("session_driver", "stream_error")
			}
			return d.finishTimed(sessionStart, models.ResultMaxTurnsOrError, nil, err.Error(), turns), nil
		}

		if len(toolCalls) == 0 {
			history = append(history, models.Message{Role: models.RoleAssistant, Content: result.Text})
			if d.Log != nil {
				d.Log.AssistantText(result.Text)
			}
		} else {
			history = append(history, models.Message{Role: models.RoleAssistant, Content: result.Text, ToolCalls: toolCalls})
			if d.Log != nil && result.Text != "" {
				d.Log.AssistantText(result.Text)
			}
			d.emitState(ctx, state, models.DriverStateExecuting)
			state = models.DriverStateExecuting
			d.dispatchTools(ctx, &history, toolCalls)
			d.emitState(ctx, state, models.DriverStateThinking)
			state = models.DriverStateThinking
		}

		turns++

		if usage.Reported {
			d.Context.UpdateUsage(usage.PromptTokens, usage.CompletionTokens)
		} else {
			d.Context.UpdateCharFallback(totalChars(history))
		}

		util := d.Context.Utilization()
		if d.Emitter != nil {
			d.Emitter.ContextPressure(ctx, d.Context.PromptTokens, d.Context.Window, stateForUtilization(util, d.Context))
		}
		if d.Log != nil {
			d.Log.TokenUsage(d.Context.PromptTokens, d.Context.CompletionTokens, util)
		}

		decision := d.Context.Evaluate(history)
		if d.Metrics != nil {
			d.Metrics.RecordContextAction(util, contextActionLabel(decision.Action))
		}
		switch decision.Action {
		case contextmgr.ActionContinue:
			// fall through to turn cap check below

		case contextmgr.ActionMask:
			masked := d.Context.MaskOldestObservations(history, decision.MaskCount)
			reclaimedPct := 0.0
			if d.Context.Window > 0 {
				reclaimedPct = float64(masked) / float64(len(history)) * 100
			}
			notification := contextmgr.GenerateMaskNotification(masked, reclaimedPct)
			history = append(history, models.Message{Role: models.RoleUser, Content: notification})
			if d.Log != nil {
				d.Log.ContextMask(masked, reclaimedPct)
			}

		case contextmgr.ActionWindDown:
			history = append(history, models.Message{Role: models.RoleUser, Content: contextmgr.WindDownMessage(int(util * 100))})

		case contextmgr.ActionRestart:
			carry := contextmgr.ExtractCarryover(history, d.CarryoverTurns)
			reason := "context window exhausted"
			if d.Emitter != nil {
				d.Emitter.SessionRestarted(ctx, d.SessionNumber, len(carry), reason)
			}
			if d.Log != nil {
				d.Log.SessionRestart(d.SessionNumber, len(carry), reason)
			}
			return d.finishTimed(sessionStart, models.ResultContextFull, carry, reason, turns), nil
		}

		if d.MaxTurns > 0 && turns >= d.MaxTurns {
			return d.finishTimed(sessionStart, models.ResultMaxTurnsOrError, nil, fmt.Sprintf("turn cap of %d reached", d.MaxTurns), turns), nil
		}
	}
}

func (d *Driver) finish(kind models.SessionResultKind, carryover []models.Message, reason string, turns int) models.SessionResult {
	if d.Log != nil {
		d.Log.SessionEnd(string(kind), reason, turns)
	}
	return models.SessionResult{Kind: kind, Carryover: carryover, Reason: reason, Turns: turns}
}

func (d *Driver) finishTimed(sessionStart time.Time, kind models.SessionResultKind, carryover []models.Message, reason string, turns int) models.SessionResult {
	if d.Metrics != nil {
		d.Metrics.SessionEnded(time.Since(sessionStart).Seconds())
	}
	return d.finish(kind, carryover, reason, turns)
}

func (d *Driver) streamTurn(ctx context.Context, history []models.Message) (llm.CompletionResult, []models.ToolCall, llm.Usage, error) {
	onDelta := func(delta string) {
		if d.Emitter != nil {
			d.Emitter.ThoughtText(ctx, delta)
		}
	}

	start := time.Now()
	result, err := d.Provider.Complete(ctx, d.Model, history, d.Tools, onDelta)
	elapsed := time.Since(start).Seconds()
	if d.Metrics != nil {
		if err != nil {
			d.Metrics.RecordLLMRequest(d.Model, "error", elapsed, 0, 0)
		} else {
			d.Metrics.RecordLLMRequest(d.Model, "success", elapsed, result.Usage.PromptTokens, result.Usage.CompletionTokens)
		}
	}
	if err != nil {
		return llm.CompletionResult{}, nil, llm.Usage{}, fmt.Errorf("stream turn: %w", err)
	}

	return result, result.ToolCalls, result.Usage, nil
}

func (d *Driver) dispatchTools(ctx context.Context, history *[]models.Message, toolCalls []models.ToolCall) {
	for _, call := range toolCalls {
		argsJSON := string(call.Arguments)
		if d.Emitter != nil {
			d.Emitter.ToolCallStarted(ctx, call.ID, call.Name, argsJSON)
		}

		start := time.Now()
		result := d.Router.Dispatch(ctx, call)
		elapsed := time.Since(start)

		*history = append(*history, models.Message{Role: models.RoleTool, ToolResult: &result})

		if d.Metrics != nil {
			status := "success"
			if result.IsError {
				status = "error"
			}
			d.Metrics.RecordToolExecution(call.Name, status, elapsed.Seconds())
		}

		if d.Emitter != nil {
			d.Emitter.ToolCallCompleted(ctx, call.ID, call.Name, result.Content, result.IsError, elapsed)
		}
		if d.Log != nil {
			d.Log.ToolCall(call.ID, call.Name, argsJSON)
			d.Log.ToolResult(call.ID, call.Name, result.Content, result.IsError)
		}
	}
}

func (d *Driver) emitState(ctx context.Context, from, to models.DriverState) {
	if d.Emitter != nil {
		d.Emitter.StateChanged(ctx, from, to)
	}
}

func contextActionLabel(a contextmgr.Action) string {
	switch a {
	case contextmgr.ActionMask:
		return "mask"
	case contextmgr.ActionWindDown:
		return "wind_down"
	case contextmgr.ActionRestart:
		return "restart"
	default:
		return "continue"
	}
}

func stateForUtilization(util float64, m *contextmgr.Manager) models.ContextState {
	switch {
	case util >= m.HardThreshold:
		return models.ContextStateWindDown
	case util >= m.SoftThreshold:
		return models.ContextStateMask
	default:
		return models.ContextStateContinue
	}
}

func totalChars(history []models.Message) int {
	total := 0
	for _, msg := range history {
		total += len(msg.Content)
		if msg.ToolResult != nil {
			total += len(msg.ToolResult.Content)
		}
		for _, tc := range msg.ToolCalls {
			total += len(tc.Arguments)
		}
	}
	return total
}
