package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/binarymuse/ouroboros/internal/contextmgr"
	"github.com/binarymuse/ouroboros/internal/events"
	"github.com/binarymuse/ouroboros/internal/llm"
	"github.com/binarymuse/ouroboros/internal/models"
	"github.com/binarymuse/ouroboros/internal/toolrouter"
)

// scriptedProvider returns one CompletionResult per call, in order, looping
// on the last entry if Complete is called more times than there are turns.
type scriptedProvider struct {
	turns []llm.CompletionResult
	calls int
}

func (p *scriptedProvider) Complete(_ context.Context, _ string, _ []models.Message, _ []llm.ToolSchema, onDelta llm.TextDeltaFunc) (llm.CompletionResult, error) {
	i := p.calls
	if i >= len(p.turns) {
		i = len(p.turns) - 1
	}
	p.calls++
	result := p.turns[i]
	if onDelta != nil && result.Text != "" {
		onDelta(result.Text)
	}
	return result, nil
}

func textTurn(text string) llm.CompletionResult {
	return llm.CompletionResult{Text: text, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5, Reported: true}}
}

func TestRunEndsOnTextOnlyReplyWhenTurnCapIsOne(t *testing.T) {
	d := &Driver{
		MaxTurns: 1,
		Provider: &scriptedProvider{turns: []llm.CompletionResult{textTurn("all done")}},
		Model:    "local-llama",
		Context:  contextmgr.NewManager(8000, 0.70, 0.90, 3),
		Emitter:  events.New(nil),
	}

	result, err := d.Run(context.Background(), "be helpful", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != models.ResultMaxTurnsOrError {
		t.Errorf("Kind = %q, want %q", result.Kind, models.ResultMaxTurnsOrError)
	}
	if result.Turns != 1 {
		t.Errorf("Turns = %d, want 1", result.Turns)
	}
}

func TestRunStopsImmediatelyWhenShutdownAlreadySet(t *testing.T) {
	flag := NewShutdownFlag()
	flag.Set()

	d := &Driver{
		Provider: &scriptedProvider{turns: []llm.CompletionResult{textTurn("should never run")}},
		Model:    "local-llama",
		Context:  contextmgr.NewManager(8000, 0.70, 0.90, 3),
		Shutdown: flag,
	}

	result, err := d.Run(context.Background(), "be helpful", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != models.ResultUserShutdown {
		t.Errorf("Kind = %q, want %q", result.Kind, models.ResultUserShutdown)
	}
	if result.Turns != 0 {
		t.Errorf("Turns = %d, want 0", result.Turns)
	}
}

func TestRunDispatchesToolCallsThroughRouter(t *testing.T) {
	toolCallTurn := llm.CompletionResult{
		ToolCalls: []models.ToolCall{{ID: "c1", Name: "shell_exec", Arguments: json.RawMessage(`{"command":"echo hi"}`)}},
		Usage:     llm.Usage{PromptTokens: 10, CompletionTokens: 5, Reported: true},
	}

	d := &Driver{
		MaxTurns: 2,
		Provider: &scriptedProvider{turns: []llm.CompletionResult{toolCallTurn, textTurn("done")}},
		Model:    "local-llama",
		Router:   toolrouter.New(nil, nil),
		Context:  contextmgr.NewManager(8000, 0.70, 0.90, 3),
		Emitter:  events.New(nil),
	}

	result, err := d.Run(context.Background(), "be helpful", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Turns != 2 {
		t.Errorf("Turns = %d, want 2", result.Turns)
	}
}

func TestRunRestartsWhenUtilizationCrossesHardThresholdTwice(t *testing.T) {
	over := llm.CompletionResult{Text: "x", Usage: llm.Usage{PromptTokens: 950, CompletionTokens: 1, Reported: true}}
	d := &Driver{
		MaxTurns:       10,
		Provider:       &scriptedProvider{turns: []llm.CompletionResult{over, over, over}},
		Model:          "local-llama",
		Context:        contextmgr.NewManager(1000, 0.70, 0.90, 3),
		CarryoverTurns: 1,
		Emitter:        events.New(nil),
	}

	result, err := d.Run(context.Background(), "be helpful", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Kind != models.ResultContextFull {
		t.Errorf("Kind = %q, want %q", result.Kind, models.ResultContextFull)
	}
}

func TestRunCarriesSeedCarryoverIntoHistory(t *testing.T) {
	d := &Driver{
		MaxTurns: 1,
		Provider: &scriptedProvider{turns: []llm.CompletionResult{textTurn("ack")}},
		Model:    "local-llama",
		Context:  contextmgr.NewManager(8000, 0.70, 0.90, 3),
	}

	carryover := []models.Message{{Role: models.RoleUser, Content: "continuing prior work"}}
	result, err := d.Run(context.Background(), "be helpful", carryover)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Turns != 1 {
		t.Errorf("Turns = %d, want 1", result.Turns)
	}
}
