package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skiffchat/cli/cmd/skiff/cli/checkpoint"
	"github.com/skiffchat/cli/cmd/skiff/cli/history"
	"github.com/skiffchat/cli/cmd/skiff/cli/logging"
	"github.com/skiffchat/cli/cmd/skiff/cli/paths"
	"github.com/skiffchat/cli/cmd/skiff/cli/settings"
)

// workspaceRoot resolves the workspace the CLI operates on: the current
// working directory in canonical form.
func workspaceRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return paths.CanonicalWorkspacePath(cwd)
}

// loadSettings is a small indirection so root.go's telemetry hook does not
// import the settings package directly.
func loadSettings(workspaceRoot string) (*settings.SkiffSettings, error) {
	return settings.Load(workspaceRoot)
}

// storeActive reports whether a shadow store exists for the workspace. Used
// for telemetry only, so all errors collapse to false.
func storeActive(workspaceRoot string) bool {
	storeRoot, err := paths.StoreRoot(workspaceRoot)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(storeRoot, ".git"))
	return err == nil
}

// newManager builds an Uninitialized manager for the workspace, wiring in the
// JSONL transcript and the configured commit author. Logging is initialized
// as a side effect so every command gets the same log file.
func newManager(workspaceRoot string) (*checkpoint.Manager, *settings.SkiffSettings, error) {
	s, err := settings.Load(workspaceRoot)
	if err != nil {
		return nil, nil, err
	}

	if err := logging.Init(workspaceRoot); err != nil {
		// Logging failure should not block checkpoint operations.
		fmt.Fprintf(os.Stderr, "warning: could not initialize logging: %v\n", err)
	}
	logging.SetLogLevelGetter(func() string { return s.LogLevel })

	storeRoot, err := paths.StoreRoot(workspaceRoot)
	if err != nil {
		return nil, nil, err
	}

	transcript, err := history.Load(filepath.Join(workspaceRoot, paths.HistoryFile))
	if err != nil {
		return nil, nil, err
	}

	name, email := s.Author()
	mgr := checkpoint.NewManager(checkpoint.Options{
		WorkspaceRoot: workspaceRoot,
		StoreRoot:     storeRoot,
		History:       transcript,
		Author:        checkpoint.Author{Name: name, Email: email},
	})
	return mgr, s, nil
}

// openManager builds a manager and attaches it to the existing store,
// printing a friendly hint when the workspace was never initialized.
func openManager(ctx context.Context) (*checkpoint.Manager, *settings.SkiffSettings, error) {
	ws, err := workspaceRoot()
	if err != nil {
		return nil, nil, err
	}

	mgr, s, err := newManager(ws)
	if err != nil {
		return nil, nil, err
	}

	if !s.Enabled {
		fmt.Fprintln(os.Stderr, "skiff checkpointing is disabled in settings")
		return nil, nil, NewSilentError(fmt.Errorf("checkpointing disabled"))
	}

	if err := mgr.Open(ctx); err != nil {
		if errors.Is(err, checkpoint.ErrNotInitialized) {
			fmt.Fprintln(os.Stderr, "no checkpoint store for this workspace; run 'skiff init' first")
			return nil, nil, NewSilentError(err)
		}
		return nil, nil, err
	}
	return mgr, s, nil
}
