package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSystemPrompt(t *testing.T) {
	tmpDir := t.TempDir()
	content := "You are a careful, concise coding agent.\n"
	if err := os.WriteFile(filepath.Join(tmpDir, SystemPromptFilename), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := LoadSystemPrompt(tmpDir)
	if err != nil {
		t.Fatalf("LoadSystemPrompt() error = %v", err)
	}
	if got != content {
		t.Errorf("got %q, want %q", got, content)
	}
}

func TestLoadSystemPromptMissingFileFailsFast(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadSystemPrompt(tmpDir)
	if err == nil {
		t.Fatal("expected error for missing SYSTEM_PROMPT.md, got nil")
	}
	if !strings.Contains(err.Error(), SystemPromptFilename) {
		t.Errorf("expected error to mention %q, got %v", SystemPromptFilename, err)
	}
}

func TestLoadSystemPromptNotCachedAcrossCalls(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, SystemPromptFilename)

	if err := os.WriteFile(path, []byte("first version"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	first, err := LoadSystemPrompt(tmpDir)
	if err != nil {
		t.Fatalf("LoadSystemPrompt() error = %v", err)
	}
	if first != "first version" {
		t.Fatalf("got %q, want %q", first, "first version")
	}

	if err := os.WriteFile(path, []byte("second version"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	second, err := LoadSystemPrompt(tmpDir)
	if err != nil {
		t.Fatalf("LoadSystemPrompt() error = %v", err)
	}
	if second != "second version" {
		t.Fatalf("expected fresh read to see updated content, got %q", second)
	}
}
