package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newCleanCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Destroy the checkpoint store for this workspace",
		Long: `Removes the shadow mirror and all checkpoints for this workspace. The
workspace files themselves are untouched. This is the only recovery path when
the store reports corruption or a restore left things in a mixed state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, _, err := openManager(cmd.Context())
			if err != nil {
				return err
			}

			if !yes {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return errors.New("refusing to clean without confirmation; pass --yes in non-interactive use")
				}
				confirmed := false
				form := huh.NewForm(huh.NewGroup(
					huh.NewConfirm().
						Title("Delete all checkpoints for this workspace?").
						Description("The shadow mirror and every snapshot will be removed. Workspace files stay as they are.").
						Value(&confirmed),
				))
				if err := form.Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						fmt.Println("Clean cancelled")
						return nil
					}
					return err
				}
				if !confirmed {
					fmt.Println("Clean cancelled")
					return nil
				}
			}

			if err := mgr.Clean(cmd.Context()); err != nil {
				return err
			}

			fmt.Println("Checkpoint store removed")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}
