package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint store status for this workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, _, err := openManager(cmd.Context())
			if err != nil {
				return err
			}

			count, err := mgr.SnapshotCount()
			if err != nil {
				return err
			}
			pending, err := mgr.PendingToolUses()
			if err != nil {
				return err
			}
			modified, err := mgr.AnyModified()
			if err != nil {
				return err
			}

			fmt.Printf("Turn checkpoints:       %d\n", count)
			fmt.Printf("Pending tool snapshots: %d\n", pending)
			if modified {
				fmt.Println("Workspace:              modified since last snapshot")
			} else {
				fmt.Println("Workspace:              clean")
			}
			return nil
		},
	}
}
