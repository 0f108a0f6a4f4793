// Package paths derives the filesystem locations skiff uses: the workspace
// infrastructure directory (.skiff) and the per-installation data directory
// that holds shadow mirrors. The mirror for a workspace is keyed by a
// fingerprint of the canonical workspace path so that multiple workspaces
// never collide on one mirror.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Directory constants
const (
	SkiffDir          = ".skiff"
	SkiffLogsDir      = ".skiff/logs"
	HistoryFile       = ".skiff/history.jsonl"
	SettingsFile      = ".skiff/settings.json"
	LocalSettingsFile = ".skiff/settings.local.json"
)

// DataDirEnvVar overrides the per-installation data directory. Primarily for
// tests.
const DataDirEnvVar = "SKIFF_DATA_DIR"

// mirrorsDirName is the subdirectory of the data dir holding shadow stores.
const mirrorsDirName = "mirrors"

// fingerprintLength is the number of hex characters kept from the workspace
// path hash. 16 hex chars (64 bits) is plenty for per-machine uniqueness.
const fingerprintLength = 16

// DataDir returns the per-installation data directory, honoring the
// SKIFF_DATA_DIR override.
func DataDir() (string, error) {
	if override := os.Getenv(DataDirEnvVar); override != "" {
		return override, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(configDir, "skiff"), nil
}

// WorkspaceFingerprint returns a stable hex fingerprint of the canonical
// workspace path.
func WorkspaceFingerprint(workspaceRoot string) (string, error) {
	canonical, err := CanonicalWorkspacePath(workspaceRoot)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:fingerprintLength], nil
}

// CanonicalWorkspacePath resolves a workspace root to its canonical absolute
// form: absolute, cleaned, symlinks evaluated when possible.
func CanonicalWorkspacePath(workspaceRoot string) (string, error) {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return "", fmt.Errorf("resolving workspace path: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}

// StoreRoot returns the shadow store location for a workspace: the data dir
// plus the workspace fingerprint.
func StoreRoot(workspaceRoot string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}

	fingerprint, err := WorkspaceFingerprint(workspaceRoot)
	if err != nil {
		return "", err
	}

	return filepath.Join(dataDir, mirrorsDirName, fingerprint), nil
}

// IsInfrastructurePath returns true if the workspace-relative path is part
// of skiff's own infrastructure (inside the .skiff directory). Infrastructure
// paths are never mirrored.
func IsInfrastructurePath(path string) bool {
	return path == SkiffDir || strings.HasPrefix(path, SkiffDir+"/") ||
		strings.HasPrefix(path, SkiffDir+string(filepath.Separator))
}

// AbsPath returns the absolute path for a workspace-relative path. If the
// path is already absolute, it is returned as-is.
func AbsPath(workspaceRoot, relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(workspaceRoot, relPath)
}
