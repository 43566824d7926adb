package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureRootCreatesMissingDirectory(t *testing.T) {
	parent := t.TempDir()
	target := filepath.Join(parent, "nested", "workspace")

	root, err := EnsureRoot(target)
	if err != nil {
		t.Fatalf("EnsureRoot() error = %v", err)
	}

	info, err := os.Stat(root.Path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected workspace root to be a directory")
	}
}

func TestEnsureRootResolvesRelativePaths(t *testing.T) {
	root, err := EnsureRoot(".")
	if err != nil {
		t.Fatalf("EnsureRoot() error = %v", err)
	}
	if !filepath.IsAbs(root.Path) {
		t.Fatalf("expected resolved path to be absolute, got %q", root.Path)
	}
}

func TestEnsureRootIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	first, err := EnsureRoot(dir)
	if err != nil {
		t.Fatalf("first EnsureRoot() error = %v", err)
	}
	second, err := EnsureRoot(dir)
	if err != nil {
		t.Fatalf("second EnsureRoot() error = %v", err)
	}
	if first.Path != second.Path {
		t.Fatalf("expected stable resolved path, got %q then %q", first.Path, second.Path)
	}
}

func TestEnsureRootResolvesSymlinks(t *testing.T) {
	parent := t.TempDir()
	real := filepath.Join(parent, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	link := filepath.Join(parent, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported on this filesystem: %v", err)
	}

	root, err := EnsureRoot(link)
	if err != nil {
		t.Fatalf("EnsureRoot() error = %v", err)
	}

	realResolved, err := filepath.EvalSymlinks(real)
	if err != nil {
		t.Fatalf("EvalSymlinks() error = %v", err)
	}
	if root.Path != realResolved {
		t.Fatalf("expected symlink to resolve to %q, got %q", realResolved, root.Path)
	}
}
