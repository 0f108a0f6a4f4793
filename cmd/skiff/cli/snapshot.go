package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var (
		toolName       string
		skipUnmodified bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot [message]",
		Short: "Capture the current workspace state",
		Long: `Commits the current workspace state into the shadow mirror.

Without --tool the snapshot marks a conversation turn boundary: pending
tool-use checkpoints are folded under it and it gets the next turn tag.
With --tool the snapshot is buffered as a fine-grained tool checkpoint and
stays invisible to 'skiff list' until the next turn boundary.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := openManager(cmd.Context())
			if err != nil {
				return err
			}

			message := "checkpoint"
			if len(args) > 0 {
				message = args[0]
			}

			if skipUnmodified {
				modified, err := mgr.AnyModified()
				if err != nil {
					return err
				}
				if !modified {
					fmt.Println("No changes since last snapshot; skipping")
					return nil
				}
			}

			var commitID string
			if toolName != "" {
				commitID, err = mgr.TrackToolUse(cmd.Context(), toolName, message)
			} else {
				commitID, err = mgr.CreateSnapshot(cmd.Context(), message, true)
			}
			if err != nil {
				return err
			}

			if toolName != "" {
				pending, _ := mgr.PendingToolUses()
				fmt.Printf("Buffered tool checkpoint %s (%d pending)\n", shortHash(commitID), pending)
			} else {
				count, _ := mgr.SnapshotCount()
				fmt.Printf("Created snapshot %d (%s)\n", count, shortHash(commitID))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&toolName, "tool", "", "record a tool-level checkpoint for the named tool instead of a turn boundary")
	cmd.Flags().BoolVar(&skipUnmodified, "skip-unmodified", false, "do nothing when no file changed since the last snapshot")

	return cmd
}

// shortHash abbreviates a commit hash for display.
func shortHash(commitID string) string {
	if len(commitID) > 8 {
		return commitID[:8]
	}
	return commitID
}
