// Package testutil provides shared test utilities for package-level tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile creates a file with the given content under root, creating
// parent directories as needed.
func WriteFile(t *testing.T, root, path, content string) {
	t.Helper()

	fullPath := filepath.Join(root, path)

	dir := filepath.Dir(fullPath)
	//nolint:gosec // test code, permissions are intentionally standard
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	//nolint:gosec // test code, permissions are intentionally standard
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// ReadFile reads a file from under root, failing the test on error.
func ReadFile(t *testing.T, root, path string) string {
	t.Helper()

	fullPath := filepath.Join(root, path)
	//nolint:gosec // test code, path is from test setup
	data, err := os.ReadFile(fullPath)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(data)
}

// RemoveFile deletes a file from under root, failing the test on error.
func RemoveFile(t *testing.T, root, path string) {
	t.Helper()

	if err := os.Remove(filepath.Join(root, path)); err != nil {
		t.Fatalf("failed to remove file %s: %v", path, err)
	}
}

// FileExists reports whether a file exists under root.
func FileExists(t *testing.T, root, path string) bool {
	t.Helper()

	_, err := os.Stat(filepath.Join(root, path))
	return err == nil
}

// TouchFuture bumps a file's mtime one second forward so whole-second mtime
// comparison sees it as modified without the test sleeping.
func TouchFuture(t *testing.T, root, path string) {
	t.Helper()

	fullPath := filepath.Join(root, path)
	info, err := os.Stat(fullPath)
	if err != nil {
		t.Fatalf("failed to stat file %s: %v", path, err)
	}
	future := info.ModTime().Add(2 * time.Second)
	if err := os.Chtimes(fullPath, future, future); err != nil {
		t.Fatalf("failed to touch file %s: %v", path, err)
	}
}
