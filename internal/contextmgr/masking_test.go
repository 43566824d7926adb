package contextmgr

import (
	"testing"

	"github.com/binarymuse/ouroboros/internal/models"
)

func buildHistory() []models.Message {
	return []models.Message{
		{Role: models.RoleUser, Content: "read the file"},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "c1", Name: "file_read"}}},
		{Role: models.RoleTool, ToolResult: &models.ToolResult{ToolCallID: "c1", Content: "line one\nline two\nline three"}},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "c2", Name: "shell_exec"}}},
		{Role: models.RoleTool, ToolResult: &models.ToolResult{ToolCallID: "c2", Content: `{"exit_code":0,"stdout":"hello"}`}},
		{Role: models.RoleAssistant, Content: "done"},
	}
}

func TestMaskOldestObservationsReplacesContentOnly(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	history := buildHistory()

	masked := m.MaskOldestObservations(history, 1)
	if masked != 1 {
		t.Fatalf("masked = %d, want 1", masked)
	}
	if m.MaskedCount != 1 {
		t.Errorf("MaskedCount = %d, want 1", m.MaskedCount)
	}

	got := history[2].ToolResult.Content
	if got == "line one\nline two\nline three" {
		t.Error("expected content to be replaced by placeholder")
	}
	if !history[2].ToolResult.Masked {
		t.Error("expected Masked flag to be set")
	}
	// role/correlation id untouched
	if history[2].Role != models.RoleTool || history[2].ToolResult.ToolCallID != "c1" {
		t.Error("masking must not alter role or correlation id")
	}
	// second tool message untouched since n=1
	if history[4].ToolResult.Masked {
		t.Error("expected second tool message to remain unmasked")
	}
}

func TestMaskOldestObservationsStopsAtN(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	history := buildHistory()

	masked := m.MaskOldestObservations(history, 5)
	if masked != 2 {
		t.Fatalf("masked = %d, want 2 (only 2 tool messages exist)", masked)
	}
}

func TestMaskOldestObservationsSkipsAlreadyMasked(t *testing.T) {
	m := NewManager(1000, 0.70, 0.90, 3)
	history := buildHistory()
	history[2].ToolResult.Masked = true

	masked := m.MaskOldestObservations(history, 5)
	if masked != 1 {
		t.Fatalf("masked = %d, want 1 (first already masked)", masked)
	}
}

func TestFileReadPlaceholderFormat(t *testing.T) {
	got := filereadPlaceholder("line one\nline two\nline three")
	want := "[file_read masked — 3 lines, starts with: line one\nline two\nline three]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestShellExecPlaceholderFormatParsesJSON(t *testing.T) {
	got := shellExecPlaceholder(`{"exit_code":2,"stdout":"abcde"}`)
	want := "[shell_exec masked — exit_code=2, stdout=5 bytes]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestShellExecPlaceholderFallsBackOnInvalidJSON(t *testing.T) {
	got := shellExecPlaceholder("not json")
	want := "[shell_exec masked — exit_code=unknown, stdout=8 bytes]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultPlaceholderFormat(t *testing.T) {
	got := placeholderFor("spawn_background_task", "abcdefghij")
	want := "[spawn_background_task masked — 10 bytes of output]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestGenerateMaskNotification(t *testing.T) {
	got := GenerateMaskNotification(3, 12.5)
	want := "Masked 3 older tool result(s) to reclaim ~12% of context window capacity."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
