// Package files implements the file_read and file_write tool operations.
// Reads are unrestricted by design; writes are gated by the Safety Layer's
// workspace write boundary.
package files

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/binarymuse/ouroboros/internal/safety"
)

// WriteGate is the subset of the Safety Layer that file writes depend on.
type WriteGate interface {
	IsWriteAllowed(path string) bool
}

var _ WriteGate = (*safety.Layer)(nil)

// Read returns the raw content of path. Reads are not boundary-checked.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteResult is the structured outcome of a successful file_write.
type WriteResult struct {
	BytesWritten int `json:"bytes_written"`
}

// ErrWriteOutsideWorkspace is returned when gate rejects path.
var ErrWriteOutsideWorkspace = fmt.Errorf("write outside workspace boundary")

// Write creates any missing parent directories and writes content to path,
// after confirming gate.IsWriteAllowed(path). Returns ErrWriteOutsideWorkspace
// if the boundary check fails.
func Write(gate WriteGate, path string, content string) (WriteResult, error) {
	if !gate.IsWriteAllowed(path) {
		return WriteResult{}, ErrWriteOutsideWorkspace
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WriteResult{}, fmt.Errorf("create directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return WriteResult{}, fmt.Errorf("write %s: %w", path, err)
	}

	return WriteResult{BytesWritten: len(content)}, nil
}
