package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDataDirHonorsOverride(t *testing.T) {
	override := t.TempDir()
	t.Setenv(DataDirEnvVar, override)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir failed: %v", err)
	}
	if dir != override {
		t.Errorf("DataDir() = %q, want override %q", dir, override)
	}
}

func TestWorkspaceFingerprintIsStable(t *testing.T) {
	ws := t.TempDir()

	first, err := WorkspaceFingerprint(ws)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	second, err := WorkspaceFingerprint(ws)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}

	if first != second {
		t.Errorf("fingerprint not stable: %q vs %q", first, second)
	}
	if len(first) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(first))
	}
}

func TestWorkspaceFingerprintDiffersPerWorkspace(t *testing.T) {
	a, err := WorkspaceFingerprint(t.TempDir())
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	b, err := WorkspaceFingerprint(t.TempDir())
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	if a == b {
		t.Error("distinct workspaces produced the same fingerprint")
	}
}

func TestStoreRootLayout(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(DataDirEnvVar, dataDir)
	ws := t.TempDir()

	storeRoot, err := StoreRoot(ws)
	if err != nil {
		t.Fatalf("StoreRoot failed: %v", err)
	}

	if !strings.HasPrefix(storeRoot, filepath.Join(dataDir, "mirrors")+string(filepath.Separator)) {
		t.Errorf("store root %q not under %s/mirrors", storeRoot, dataDir)
	}
}

func TestIsInfrastructurePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{".skiff", true},
		{".skiff/settings.json", true},
		{".skiff/logs/skiff.log", true},
		{"src/main.go", false},
		{".skiffx", false},
		{"a/.skiff", false},
	}
	for _, tt := range tests {
		if got := IsInfrastructurePath(tt.path); got != tt.want {
			t.Errorf("IsInfrastructurePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
