package cli

import (
	"errors"
	"fmt"

	"github.com/skiffchat/cli/cmd/skiff/cli/checkpoint"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a checkpoint store for this workspace",
		Long: `Creates the shadow mirror for the current workspace. The first snapshot
captures the full workspace state; later ones record only what changed.
Fails if a store already exists; run 'skiff clean' first to start over.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := workspaceRoot()
			if err != nil {
				return err
			}

			mgr, s, err := newManager(ws)
			if err != nil {
				return err
			}
			if !s.Enabled {
				return errors.New("checkpointing is disabled in settings; enable it in .skiff/settings.json first")
			}

			if err := mgr.Init(cmd.Context()); err != nil {
				if errors.Is(err, checkpoint.ErrAlreadyInitialized) {
					return fmt.Errorf("a checkpoint store already exists for this workspace; run 'skiff clean' to remove it")
				}
				return err
			}

			fmt.Printf("Initialized checkpoint store for %s\n", ws)
			return nil
		},
	}
}
