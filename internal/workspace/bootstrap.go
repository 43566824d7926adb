// Package workspace resolves and prepares the sandboxed directory tree that
// shell commands, file reads, and file writes are confined to.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Root is a canonicalized, existing workspace directory. All write-boundary
// checks performed elsewhere in the harness are relative to Root.Path.
type Root struct {
	Path string
}

// EnsureRoot canonicalizes the given path to an absolute, symlink-resolved
// directory and creates it (and any missing parents) if it doesn't exist yet.
//
// Canonicalization happens once at startup so that every later containment
// check (is a candidate path inside the workspace?) can compare against a
// single resolved prefix instead of re-resolving symlinks per call.
func EnsureRoot(path string) (*Root, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "."
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace directory: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace symlinks: %w", err)
	}

	return &Root{Path: resolved}, nil
}
