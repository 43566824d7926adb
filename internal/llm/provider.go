// Package llm adapts the OpenAI-compatible chat completions streaming API
// to the turn loop's needs: a single Complete call that consumes a stream
// and returns accumulated text, tool calls, and reported usage.
package llm

import (
	"context"

	"github.com/binarymuse/ouroboros/internal/models"
)

// Usage carries the token accounting an inference endpoint reports for one
// request. PromptTokens is the total input size of the just-made request,
// not an incremental delta — callers must set, not add, their own running
// total from it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Reported         bool
}

// CompletionResult is the accumulated outcome of one streamed completion.
type CompletionResult struct {
	Text      string
	ToolCalls []models.ToolCall
	Usage     Usage
}

// TextDeltaFunc is called for each streamed text fragment, so the caller
// can forward it to an event sink as ThoughtText without waiting for the
// full response.
type TextDeltaFunc func(delta string)

// Provider is the single local OpenAI-compatible inference backend the
// harness talks to. There is no cross-provider abstraction by design.
type Provider interface {
	// Complete streams one chat completion. history is the full
	// conversation (system prompt already included by the caller); tools
	// is the set of tool schemas to advertise, filtered by the caller for
	// sub-agents. onDelta is invoked for every streamed text fragment.
	Complete(ctx context.Context, model string, history []models.Message, tools []ToolSchema, onDelta TextDeltaFunc) (CompletionResult, error)
}

// ToolSchema describes one tool for the provider's function-calling
// surface.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}
