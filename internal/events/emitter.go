// Package events provides the sequenced emitter that Session Driver
// instances use to produce models.AgentEvent values in causal order.
package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/binarymuse/ouroboros/internal/models"
)

// Emitter assigns a monotonic sequence number to every event it produces
// and dispatches it to a configured sink. One Emitter is created per
// Session Driver instance (root or sub-agent); events from different
// sessions are not globally ordered, only causally ordered within one
// Emitter.
type Emitter struct {
	sequence uint64
	sink     models.EventSink
}

// New creates an Emitter dispatching to sink. A nil sink is treated as
// models.NopSink{}.
func New(sink models.EventSink) *Emitter {
	if sink == nil {
		sink = models.NopSink{}
	}
	return &Emitter{sink: sink}
}

func (e *Emitter) next() uint64 {
	return atomic.AddUint64(&e.sequence, 1)
}

func (e *Emitter) base(t models.AgentEventType) models.AgentEvent {
	return models.AgentEvent{
		Type:     t,
		Time:     time.Now(),
		Sequence: e.next(),
	}
}

func (e *Emitter) emit(ctx context.Context, ev models.AgentEvent) models.AgentEvent {
	e.sink.Emit(ctx, ev)
	return ev
}

// ThoughtText emits a streamed fragment of assistant-visible text.
func (e *Emitter) ThoughtText(ctx context.Context, text string) models.AgentEvent {
	ev := e.base(models.EventThoughtText)
	ev.Thought = &models.ThoughtTextPayload{Text: text}
	return e.emit(ctx, ev)
}

// ToolCallStarted emits the beginning of a dispatched tool call.
func (e *Emitter) ToolCallStarted(ctx context.Context, toolCallID, name, arguments string) models.AgentEvent {
	ev := e.base(models.EventToolCallStarted)
	ev.ToolStarted = &models.ToolCallStartedPayload{ToolCallID: toolCallID, Name: name, Arguments: arguments}
	return e.emit(ctx, ev)
}

// ToolCallCompleted emits a tool call's terminal outcome.
func (e *Emitter) ToolCallCompleted(ctx context.Context, toolCallID, name, content string, isError bool, elapsed time.Duration) models.AgentEvent {
	ev := e.base(models.EventToolCallCompleted)
	ev.ToolCompleted = &models.ToolCallCompletedPayload{ToolCallID: toolCallID, Name: name, Content: content, IsError: isError, Elapsed: elapsed}
	return e.emit(ctx, ev)
}

// StateChanged emits a Session Driver lifecycle transition
// (Thinking/Executing/Idle/Paused).
func (e *Emitter) StateChanged(ctx context.Context, from, to models.DriverState) models.AgentEvent {
	ev := e.base(models.EventStateChanged)
	ev.StateChanged = &models.StateChangedPayload{From: from, To: to}
	return e.emit(ctx, ev)
}

// ContextPressure emits the current token accounting against the
// configured window.
func (e *Emitter) ContextPressure(ctx context.Context, used, window int, state models.ContextState) models.AgentEvent {
	ev := e.base(models.EventContextPressure)
	util := 0.0
	if window > 0 {
		util = float64(used) / float64(window)
	}
	ev.ContextPress = &models.ContextPressurePayload{UsedTokens: used, WindowSize: window, Utilization: util, State: state}
	return e.emit(ctx, ev)
}

// SessionRestarted emits the Outer Loop's restart of a new session after a
// ContextFull verdict.
func (e *Emitter) SessionRestarted(ctx context.Context, sessionNumber, carryoverMessages int, reason string) models.AgentEvent {
	ev := e.base(models.EventSessionRestarted)
	ev.SessionRestart = &models.SessionRestartedPayload{SessionNumber: sessionNumber, CarryoverMessages: carryoverMessages, Reason: reason}
	return e.emit(ctx, ev)
}

// Error emits an unrecoverable or surfaced error.
func (e *Emitter) Error(ctx context.Context, message string, retriable bool) models.AgentEvent {
	ev := e.base(models.EventError)
	ev.Error = &models.ErrorPayload{Message: message, Retriable: retriable}
	return e.emit(ctx, ev)
}

// Discovery emits a notable finding distinct from a raw tool result.
func (e *Emitter) Discovery(ctx context.Context, summary, detail string) models.AgentEvent {
	ev := e.base(models.EventDiscovery)
	ev.Discovery = &models.DiscoveryPayload{Summary: summary, Detail: detail}
	return e.emit(ctx, ev)
}

// CountersUpdated emits the Sub-Agent Supervisor's live counts.
func (e *Emitter) CountersUpdated(ctx context.Context, total, running int) models.AgentEvent {
	ev := e.base(models.EventCountersUpdated)
	ev.Counters = &models.CountersUpdatedPayload{TotalAgents: total, RunningAgents: running}
	return e.emit(ctx, ev)
}

// SubAgentStatusChanged emits a registry entry's status transition.
func (e *Emitter) SubAgentStatusChanged(ctx context.Context, agentID string, kind models.SubAgentKind, from, to models.SubAgentStatus) models.AgentEvent {
	ev := e.base(models.EventSubAgentStatusChange)
	ev.SubAgentStatus = &models.SubAgentStatusChangedPayload{AgentID: agentID, Kind: kind, From: from, To: to}
	return e.emit(ctx, ev)
}
