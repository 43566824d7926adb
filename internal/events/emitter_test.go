package events

import (
	"context"
	"testing"

	"github.com/binarymuse/ouroboros/internal/models"
)

func TestEmitterSequenceIsMonotonic(t *testing.T) {
	var captured []models.AgentEvent
	sink := models.NewCallbackSink(func(_ context.Context, e models.AgentEvent) {
		captured = append(captured, e)
	})
	e := New(sink)

	e.ThoughtText(context.Background(), "a")
	e.ThoughtText(context.Background(), "b")

	if len(captured) != 2 {
		t.Fatalf("captured %d events, want 2", len(captured))
	}
	if captured[0].Sequence >= captured[1].Sequence {
		t.Errorf("sequence not monotonic: %d then %d", captured[0].Sequence, captured[1].Sequence)
	}
}

func TestThoughtTextPayload(t *testing.T) {
	var got models.AgentEvent
	sink := models.NewCallbackSink(func(_ context.Context, e models.AgentEvent) { got = e })
	e := New(sink)

	e.ThoughtText(context.Background(), "hello")

	if got.Type != models.EventThoughtText {
		t.Errorf("Type = %v, want EventThoughtText", got.Type)
	}
	if got.Thought == nil || got.Thought.Text != "hello" {
		t.Errorf("Thought = %v, want Text=hello", got.Thought)
	}
}

func TestToolCallCompletedPayload(t *testing.T) {
	var got models.AgentEvent
	sink := models.NewCallbackSink(func(_ context.Context, e models.AgentEvent) { got = e })
	e := New(sink)

	e.ToolCallCompleted(context.Background(), "call-1", "shell_exec", "ok", false, 0)

	if got.ToolCompleted == nil || got.ToolCompleted.ToolCallID != "call-1" {
		t.Errorf("ToolCompleted = %v", got.ToolCompleted)
	}
}

func TestNilSinkDefaultsToNop(t *testing.T) {
	e := New(nil)
	// Must not panic.
	e.Error(context.Background(), "boom", true)
}
