package safety

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/binarymuse/ouroboros/internal/config"
)

func testConfig(t *testing.T, workspace string) *config.Config {
	t.Helper()
	return &config.Config{
		Workspace: config.WorkspaceConfig{Path: workspace},
		Shell:     config.ShellConfig{TimeoutSecs: 5},
		Safety: config.SafetyConfig{
			BlockedPatterns: config.DefaultBlockedPatterns(),
			SecurityLogPath: "security.log",
		},
	}
}

func TestNewCreatesWorkspaceAndCompilesPatterns(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "workspace")
	layer, err := New(testConfig(t, root))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := os.Stat(layer.WorkspaceRoot()); err != nil {
		t.Errorf("expected workspace directory to exist: %v", err)
	}
}

func TestCheckBlocksKnownDangerousCommand(t *testing.T) {
	layer, err := New(testConfig(t, t.TempDir()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	blocked, reason := layer.Check("rm -rf /")
	if !blocked {
		t.Fatal("expected rm -rf / to be blocked")
	}
	if reason == "" {
		t.Error("expected a non-empty reason")
	}
}

func TestCheckAllowsOrdinaryCommand(t *testing.T) {
	layer, err := New(testConfig(t, t.TempDir()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if blocked, _ := layer.Check("ls -la"); blocked {
		t.Error("expected ordinary command to be allowed")
	}
}

func TestExecBlockedCommandReturnsStructuredRejectionAndNeverInvokesShell(t *testing.T) {
	root := t.TempDir()
	layer, err := New(testConfig(t, root))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := layer.Exec(context.Background(), "rm -rf /")
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if !result.Blocked {
		t.Fatal("expected Blocked = true")
	}
	if result.ExitCode == nil || *result.ExitCode != 126 {
		t.Errorf("ExitCode = %v, want 126", result.ExitCode)
	}
	if result.TimedOut {
		t.Error("blocked command must not be reported as timed out")
	}

	logPath := filepath.Join(root, "security.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected audit log to be written: %v", err)
	}
	var record rejectionRecord
	if err := json.Unmarshal(data[:len(data)-1], &record); err != nil {
		t.Fatalf("audit log line not valid JSON: %v", err)
	}
	if record.Command != "rm -rf /" {
		t.Errorf("logged command = %q, want %q", record.Command, "rm -rf /")
	}
}

func TestExecAllowedCommandRunsAndCapturesOutput(t *testing.T) {
	layer, err := New(testConfig(t, t.TempDir()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := layer.Exec(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if result.Blocked {
		t.Error("expected command to run, not be blocked")
	}
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", result.ExitCode)
	}
	if result.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "hello\n")
	}
}

func TestExecTimeoutKillsProcessGroup(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Shell.TimeoutSecs = 1
	layer, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	result, err := layer.Exec(context.Background(), "sleep 30")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if !result.TimedOut {
		t.Fatal("expected TimedOut = true")
	}
	if result.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil on timeout", result.ExitCode)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Exec took %v, expected to return shortly after the 1s timeout", elapsed)
	}
}

func TestIsWriteAllowedWithinWorkspace(t *testing.T) {
	root := t.TempDir()
	layer, err := New(testConfig(t, root))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !layer.IsWriteAllowed(filepath.Join(root, "notes.txt")) {
		t.Error("expected path inside workspace to be allowed")
	}
}

func TestIsWriteAllowedRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	layer, err := New(testConfig(t, root))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if layer.IsWriteAllowed(filepath.Join(root, "..", "escape.txt")) {
		t.Error("expected path escaping workspace via traversal to be rejected")
	}
}

func TestIsWriteAllowedRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	layer, err := New(testConfig(t, root))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	link := filepath.Join(root, "escape-link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	target := filepath.Join(link, "file.txt")
	if layer.IsWriteAllowed(target) {
		t.Error("expected write through a symlink escaping the workspace to be rejected")
	}
}

func TestIsWriteAllowedAllowsNewFileUnderExistingDirectory(t *testing.T) {
	root := t.TempDir()
	layer, err := New(testConfig(t, root))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !layer.IsWriteAllowed(filepath.Join(root, "new-file.txt")) {
		t.Error("expected not-yet-existing file under workspace root to be allowed")
	}
}
