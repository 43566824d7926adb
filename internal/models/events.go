package models

import (
	"context"
	"time"
)

// AgentEventType discriminates the payload carried by an AgentEvent. Exactly
// one of the corresponding payload fields on AgentEvent is populated for a
// given type.
type AgentEventType string

const (
	EventThoughtText          AgentEventType = "thought_text"
	EventToolCallStarted      AgentEventType = "tool_call_started"
	EventToolCallCompleted    AgentEventType = "tool_call_completed"
	EventStateChanged         AgentEventType = "state_changed"
	EventContextPressure      AgentEventType = "context_pressure"
	EventSessionRestarted     AgentEventType = "session_restarted"
	EventError                AgentEventType = "error"
	EventDiscovery            AgentEventType = "discovery"
	EventCountersUpdated      AgentEventType = "counters_updated"
	EventSubAgentStatusChange AgentEventType = "sub_agent_status_changed"
)

// ThoughtTextPayload carries a chunk of assistant-visible reasoning or reply
// text, streamed as it arrives from the provider.
type ThoughtTextPayload struct {
	Text string
}

// ToolCallStartedPayload announces that a dispatched tool call has begun
// executing.
type ToolCallStartedPayload struct {
	ToolCallID string
	Name       string
	Arguments  string
}

// ToolCallCompletedPayload carries a tool call's terminal outcome.
type ToolCallCompletedPayload struct {
	ToolCallID string
	Name       string
	Content    string
	IsError    bool
	Elapsed    time.Duration
}

// ContextState names a state of the Context Manager's graduated pressure
// state machine.
type ContextState string

const (
	ContextStateContinue ContextState = "continue"
	ContextStateMask     ContextState = "mask"
	ContextStateWindDown ContextState = "wind_down"
	ContextStateRestart  ContextState = "restart"
)

// DriverState names a Session Driver activity state, distinct from the
// Context Manager's pressure state: it reflects what the turn loop is doing
// right now, not how full the context window is.
type DriverState string

const (
	DriverStateThinking  DriverState = "thinking"
	DriverStateExecuting DriverState = "executing"
	DriverStateIdle      DriverState = "idle"
	DriverStatePaused    DriverState = "paused"
)

// StateChangedPayload announces a Session Driver activity state transition.
type StateChangedPayload struct {
	From DriverState
	To   DriverState
}

// ContextPressurePayload reports the current token accounting against the
// configured thresholds, emitted on every Context Manager evaluation.
type ContextPressurePayload struct {
	UsedTokens  int
	WindowSize  int
	Utilization float64
	State       ContextState
}

// SessionRestartedPayload announces that the Outer Loop has started a new
// session after the previous one returned ResultContextFull.
type SessionRestartedPayload struct {
	SessionNumber     int
	CarryoverMessages int
	Reason            string
}

// ErrorPayload carries an unrecoverable or surfaced error.
type ErrorPayload struct {
	Message   string
	Retriable bool
}

// DiscoveryPayload surfaces a notable finding a tool call produced, distinct
// from the raw tool result (e.g. a security-blocked command, a workspace
// boundary violation).
type DiscoveryPayload struct {
	Summary string
	Detail  string
}

// CountersUpdatedPayload reports the Sub-Agent Supervisor's live counts,
// emitted whenever a sub-agent is registered or removed.
type CountersUpdatedPayload struct {
	TotalAgents   int
	RunningAgents int
}

// SubAgentStatusChangedPayload announces a registry entry's status
// transition.
type SubAgentStatusChangedPayload struct {
	AgentID string
	Kind    SubAgentKind
	From    SubAgentStatus
	To      SubAgentStatus
}

// AgentEvent is the single event type emitted by the Session Driver, Context
// Manager, Safety Layer, and Sub-Agent Supervisor for observation and
// logging. Sequence is monotonic within a session run.
type AgentEvent struct {
	Type     AgentEventType
	Time     time.Time
	Sequence uint64

	Thought        *ThoughtTextPayload
	ToolStarted    *ToolCallStartedPayload
	ToolCompleted  *ToolCallCompletedPayload
	StateChanged   *StateChangedPayload
	ContextPress   *ContextPressurePayload
	SessionRestart *SessionRestartedPayload
	Error          *ErrorPayload
	Discovery      *DiscoveryPayload
	Counters       *CountersUpdatedPayload
	SubAgentStatus *SubAgentStatusChangedPayload
}

// EventSink receives AgentEvents as they are emitted. Implementations must
// be safe to call from multiple goroutines and must not block the caller
// for long, since emitters call Emit synchronously from hot paths like the
// turn loop and the tool dispatch table.
type EventSink interface {
	Emit(ctx context.Context, e AgentEvent)
}

// NopSink discards every event. Used as the default sink when none is
// configured.
type NopSink struct{}

func (NopSink) Emit(context.Context, AgentEvent) {}

// ChanSink forwards events onto a buffered channel, dropping events rather
// than blocking the caller when the channel is full.
type ChanSink struct {
	ch chan<- AgentEvent
}

// NewChanSink wraps ch as an EventSink. ch should be buffered; an unbuffered
// or full channel causes Emit to drop the event rather than block.
func NewChanSink(ch chan<- AgentEvent) *ChanSink {
	return &ChanSink{ch: ch}
}

func (s *ChanSink) Emit(ctx context.Context, e AgentEvent) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// MultiSink fans an event out to every wrapped sink in order.
type MultiSink struct {
	sinks []EventSink
}

// NewMultiSink wraps sinks, filtering out nils so callers can pass an
// optional sink without a nil check.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	filtered := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (s *MultiSink) Emit(ctx context.Context, e AgentEvent) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, e)
	}
}

// CallbackSink wraps a function as an EventSink, for inline handling or
// test assertions.
type CallbackSink struct {
	fn func(ctx context.Context, e AgentEvent)
}

// NewCallbackSink wraps fn as an EventSink.
func NewCallbackSink(fn func(ctx context.Context, e AgentEvent)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

func (s *CallbackSink) Emit(ctx context.Context, e AgentEvent) {
	if s.fn != nil {
		s.fn(ctx, e)
	}
}
