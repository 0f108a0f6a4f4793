// Package settings provides configuration loading for skiff.
// This package is separate from cli to allow the checkpoint package to
// import it without creating an import cycle (cli imports checkpoint).
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skiffchat/cli/cmd/skiff/cli/jsonutil"
	"github.com/skiffchat/cli/cmd/skiff/cli/paths"
)

// Default author identity used for mirror commits when none is configured.
const (
	DefaultAuthorName  = "skiff"
	DefaultAuthorEmail = "checkpoints@skiff.local"
)

// SkiffSettings represents the .skiff/settings.json configuration.
type SkiffSettings struct {
	// Enabled indicates whether checkpointing is active. When false, CLI
	// commands show a disabled message. Defaults to true.
	Enabled bool `json:"enabled"`

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	// Can be overridden by the SKIFF_LOG_LEVEL environment variable.
	// Defaults to "info".
	LogLevel string `json:"log_level,omitempty"`

	// AuthorName and AuthorEmail sign mirror commits.
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`

	// Telemetry controls anonymous usage analytics.
	// nil = not asked yet, true = opted in, false = opted out
	Telemetry *bool `json:"telemetry,omitempty"`
}

// Load loads the skiff settings from .skiff/settings.json under the
// workspace root, then applies any overrides from .skiff/settings.local.json
// if it exists. Returns default settings if neither file exists.
func Load(workspaceRoot string) (*SkiffSettings, error) {
	settingsFile := filepath.Join(workspaceRoot, paths.SettingsFile)
	localSettingsFile := filepath.Join(workspaceRoot, paths.LocalSettingsFile)

	settings, err := loadFromFile(settingsFile)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	localData, err := os.ReadFile(localSettingsFile) //nolint:gosec // path is derived from constants
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
		// Local file doesn't exist, continue without overrides
	} else {
		if err := mergeJSON(settings, localData); err != nil {
			return nil, fmt.Errorf("merging local settings: %w", err)
		}
	}

	applyDefaults(settings)

	return settings, nil
}

// Save writes the settings to .skiff/settings.json under the workspace root,
// creating the .skiff directory if needed.
func Save(workspaceRoot string, settings *SkiffSettings) error {
	skiffDirAbs := filepath.Join(workspaceRoot, paths.SkiffDir)
	if err := os.MkdirAll(skiffDirAbs, 0o750); err != nil {
		return fmt.Errorf("creating .skiff directory: %w", err)
	}

	data, err := jsonutil.MarshalIndentWithNewline(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	settingsFile := filepath.Join(workspaceRoot, paths.SettingsFile)
	if err := os.WriteFile(settingsFile, data, 0o600); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

// Author returns the commit author identity, falling back to defaults.
func (s *SkiffSettings) Author() (name, email string) {
	name, email = s.AuthorName, s.AuthorEmail
	if name == "" {
		name = DefaultAuthorName
	}
	if email == "" {
		email = DefaultAuthorEmail
	}
	return name, email
}

// loadFromFile loads settings from a specific file path.
// Returns default settings if the file doesn't exist.
func loadFromFile(filePath string) (*SkiffSettings, error) {
	settings := &SkiffSettings{
		Enabled: true, // Default to enabled
	}

	data, err := os.ReadFile(filePath) //nolint:gosec // path is from caller
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("%w", err)
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	applyDefaults(settings)

	return settings, nil
}

// mergeJSON merges JSON data into existing settings.
// Only non-zero values from the JSON override existing settings.
func mergeJSON(settings *SkiffSettings, data []byte) error {
	// Parse into a map to check which fields are present
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	if enabledRaw, ok := raw["enabled"]; ok {
		var e bool
		if err := json.Unmarshal(enabledRaw, &e); err != nil {
			return fmt.Errorf("parsing enabled field: %w", err)
		}
		settings.Enabled = e
	}

	if logLevelRaw, ok := raw["log_level"]; ok {
		var ll string
		if err := json.Unmarshal(logLevelRaw, &ll); err != nil {
			return fmt.Errorf("parsing log_level field: %w", err)
		}
		if ll != "" {
			settings.LogLevel = ll
		}
	}

	if nameRaw, ok := raw["author_name"]; ok {
		var n string
		if err := json.Unmarshal(nameRaw, &n); err != nil {
			return fmt.Errorf("parsing author_name field: %w", err)
		}
		if n != "" {
			settings.AuthorName = n
		}
	}

	if emailRaw, ok := raw["author_email"]; ok {
		var e string
		if err := json.Unmarshal(emailRaw, &e); err != nil {
			return fmt.Errorf("parsing author_email field: %w", err)
		}
		if e != "" {
			settings.AuthorEmail = e
		}
	}

	if telemetryRaw, ok := raw["telemetry"]; ok {
		var t bool
		if err := json.Unmarshal(telemetryRaw, &t); err != nil {
			return fmt.Errorf("parsing telemetry field: %w", err)
		}
		settings.Telemetry = &t
	}

	return nil
}

func applyDefaults(settings *SkiffSettings) {
	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}
}
