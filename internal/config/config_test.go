package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "model:\n  name: local-llama\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.BaseURL != "http://localhost:8000/v1" {
		t.Errorf("Model.BaseURL = %q, want default", cfg.Model.BaseURL)
	}
	if cfg.Context.Window != 128000 {
		t.Errorf("Context.Window = %d, want 128000", cfg.Context.Window)
	}
	if cfg.Context.SoftThreshold != 0.70 {
		t.Errorf("Context.SoftThreshold = %v, want 0.70", cfg.Context.SoftThreshold)
	}
	if cfg.Context.HardThreshold != 0.90 {
		t.Errorf("Context.HardThreshold = %v, want 0.90", cfg.Context.HardThreshold)
	}
	if cfg.Context.MaskBatch != 3 {
		t.Errorf("Context.MaskBatch = %d, want 3", cfg.Context.MaskBatch)
	}
	if cfg.Context.CarryoverTurns != 5 {
		t.Errorf("Context.CarryoverTurns = %d, want 5", cfg.Context.CarryoverTurns)
	}
	if cfg.Shell.TimeoutSecs != 120 {
		t.Errorf("Shell.TimeoutSecs = %d, want 120", cfg.Shell.TimeoutSecs)
	}
	if cfg.SubAgent.MaxDepth != 3 {
		t.Errorf("SubAgent.MaxDepth = %d, want 3", cfg.SubAgent.MaxDepth)
	}
	if cfg.SubAgent.MaxTotal != 10 {
		t.Errorf("SubAgent.MaxTotal = %d, want 10", cfg.SubAgent.MaxTotal)
	}
	if len(cfg.Safety.BlockedPatterns) == 0 {
		t.Error("expected default blocked patterns to be populated")
	}
	if cfg.Safety.SecurityLogPath != "security.log" {
		t.Errorf("Safety.SecurityLogPath = %q, want \"security.log\"", cfg.Safety.SecurityLogPath)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want \"info\"", cfg.Logging.Level)
	}
}

func TestLoadRejectsMissingModelName(t *testing.T) {
	path := writeConfigFile(t, "workspace:\n  path: /tmp/ws\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for missing model.name")
	}
	if _, ok := err.(*ConfigValidationError); !ok {
		t.Errorf("expected *ConfigValidationError, got %T", err)
	}
}

func TestLoadRejectsInvalidThresholdOrdering(t *testing.T) {
	path := writeConfigFile(t, `
model:
  name: local-llama
context:
  soft_threshold: 0.9
  hard_threshold: 0.7
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for hard_threshold <= soft_threshold")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `
model:
  name: local-llama
unknown_top_level_key: true
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown top-level config key")
	}
}

func TestLoadOverridesWorkspacePath(t *testing.T) {
	path := writeConfigFile(t, `
model:
  name: local-llama
workspace:
  path: /srv/ouroboros/workspace
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workspace.Path != "/srv/ouroboros/workspace" {
		t.Errorf("Workspace.Path = %q, want override", cfg.Workspace.Path)
	}
}

func TestLoadBlockedPatternsOverrideReplacesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
model:
  name: local-llama
safety:
  blocked_patterns:
    - pattern: "curl .* \\| sh"
      reason: "pipe to shell"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Safety.BlockedPatterns) != 1 {
		t.Fatalf("expected workspace override to replace defaults wholesale, got %d patterns", len(cfg.Safety.BlockedPatterns))
	}
	if cfg.Safety.BlockedPatterns[0].Reason != "pipe to shell" {
		t.Errorf("Reason = %q, want %q", cfg.Safety.BlockedPatterns[0].Reason, "pipe to shell")
	}
}

func TestDefaultBlockedPatternsAllCompile(t *testing.T) {
	for _, p := range DefaultBlockedPatterns() {
		if p.Pattern == "" || p.Reason == "" {
			t.Errorf("blocked pattern %+v missing pattern or reason", p)
		}
	}
}
