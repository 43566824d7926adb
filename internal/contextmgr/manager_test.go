package contextmgr

import (
	"testing"

	"github.com/binarymuse/ouroboros/internal/models"
)

func TestEvaluateContinueBelowSoftThreshold(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	m.UpdateUsage(500, 10)

	d := m.Evaluate(nil)
	if d.Action != ActionContinue {
		t.Errorf("Action = %v, want ActionContinue", d.Action)
	}
}

func TestEvaluateMaskBetweenThresholds(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	m.UpdateUsage(750, 10)

	d := m.Evaluate(nil)
	if d.Action != ActionMask {
		t.Errorf("Action = %v, want ActionMask", d.Action)
	}
	if d.MaskCount != 3 {
		t.Errorf("MaskCount = %d, want 3", d.MaskCount)
	}
}

func TestEvaluateMaskEscalatesToWindDownWhenAllToolMessagesMasked(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	m.UpdateUsage(750, 10)

	history := []models.Message{
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "a"}}},
		{Role: models.RoleTool, ToolResult: &models.ToolResult{ToolCallID: "a", Content: "x", Masked: true}},
	}

	d := m.Evaluate(history)
	if d.Action != ActionWindDown {
		t.Errorf("Action = %v, want ActionWindDown", d.Action)
	}
}

func TestEvaluateHardThresholdFirstOccurrenceWindDown(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	m.UpdateUsage(950, 10)

	d := m.Evaluate(nil)
	if d.Action != ActionWindDown {
		t.Errorf("Action = %v, want ActionWindDown", d.Action)
	}
	if !m.WindDownSent {
		t.Error("expected WindDownSent to be set")
	}
}

func TestEvaluateHardThresholdSecondOccurrenceRestart(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	m.UpdateUsage(950, 10)
	m.Evaluate(nil)

	d := m.Evaluate(nil)
	if d.Action != ActionRestart {
		t.Errorf("Action = %v, want ActionRestart", d.Action)
	}
}

func TestUpdateUsageSetsNotAdds(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	m.UpdateUsage(500, 10)
	m.UpdateUsage(600, 20)

	if m.PromptTokens != 600 {
		t.Errorf("PromptTokens = %d, want 600 (set, not summed)", m.PromptTokens)
	}
	if m.CompletionTokens != 30 {
		t.Errorf("CompletionTokens = %d, want 30 (accumulated)", m.CompletionTokens)
	}
}

func TestUpdateCharFallback(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	m.UpdateCharFallback(4000)

	if m.PromptTokens != 1000 {
		t.Errorf("PromptTokens = %d, want 1000", m.PromptTokens)
	}
	if m.CharFallbackCount != 1000 {
		t.Errorf("CharFallbackCount = %d, want 1000", m.CharFallbackCount)
	}
}

func TestUtilizationZeroWindow(t *testing.T) {
	m := NewManager(0, 0.70, 0.90, 3)
	if got := m.Utilization(); got != 0 {
		t.Errorf("Utilization() = %v, want 0", got)
	}
}

func TestWindDownMessage(t *testing.T) {
	got := WindDownMessage(92)
	want := "Context window ~92% full; please save important state to workspace files; session will restart shortly."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
