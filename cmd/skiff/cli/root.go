package cli

import (
	"fmt"
	"runtime"

	"github.com/skiffchat/cli/cmd/skiff/cli/telemetry"

	"github.com/spf13/cobra"
)

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

// SilentError wraps an error whose message has already been printed to the
// user; main.go skips re-printing it.
type SilentError struct {
	err error
}

// NewSilentError wraps err as a SilentError.
func NewSilentError(err error) *SilentError { return &SilentError{err: err} }

func (e *SilentError) Error() string { return e.err.Error() }
func (e *SilentError) Unwrap() error { return e.err }

// NewRootCmd creates the root skiff command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skiff",
		Short: "skiff checkpoint CLI",
		Long: `Workspace checkpointing for skiff chat sessions.

Every conversation turn and tool invocation can be snapshotted into a private
mirror, and the workspace (plus conversation history) restored to any prior
checkpoint by tag.`,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		// Hide completion command from help but keep it functional
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			// Load telemetry preference from settings (ignore errors - nil
			// defaults to disabled)
			var telemetryEnabled *bool
			active := false
			if ws, err := workspaceRoot(); err == nil {
				if s, err := loadSettings(ws); err == nil {
					telemetryEnabled = s.Telemetry
				}
				active = storeActive(ws)
			}

			telemetryClient := telemetry.NewClient(Version, telemetryEnabled)
			defer telemetryClient.Close()
			telemetryClient.TrackCommand(cmd, active)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newExpandCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("skiff CLI %s (%s)\n", Version, Commit)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
