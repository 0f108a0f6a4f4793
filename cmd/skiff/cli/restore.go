package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/skiffchat/cli/cmd/skiff/cli/checkpoint"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore [tag]",
		Short: "Rewind the workspace and conversation to a checkpoint",
		Long: `Restores the workspace files and the conversation history to the state
captured at the given checkpoint. Tags are turn numbers ("3") or tool
checkpoints within a turn ("3.2"). With no tag, an interactive picker lists
recent turn checkpoints.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := openManager(cmd.Context())
			if err != nil {
				return err
			}

			var tag checkpoint.Tag
			if len(args) > 0 {
				tag, err = checkpoint.ParseTag(args[0])
				if err != nil {
					return err
				}
			} else {
				tag, err = pickTag(mgr)
				if err != nil {
					return err
				}
			}

			if !yes {
				confirmed, err := confirmRestore(tag)
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Println("Restore cancelled")
					return nil
				}
			}

			commitID, err := mgr.Restore(cmd.Context(), tag)
			if err != nil {
				if errors.Is(err, checkpoint.ErrTagNotFound) {
					return fmt.Errorf("no checkpoint %s; run 'skiff list' to see what exists", tag)
				}
				return err
			}

			fmt.Printf("Restored to checkpoint %s (%s)\n", tag, shortHash(commitID))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// pickTag shows an interactive selector over turn checkpoints. Requires a
// terminal; in pipes and scripts the tag must be passed explicitly.
func pickTag(mgr *checkpoint.Manager) (checkpoint.Tag, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return checkpoint.Tag{}, errors.New("no tag given and stdin is not a terminal; pass a tag explicitly")
	}

	records, err := mgr.List(20)
	if err != nil {
		return checkpoint.Tag{}, err
	}
	if len(records) == 0 {
		return checkpoint.Tag{}, errors.New("no checkpoints yet; take a snapshot first")
	}

	options := make([]huh.Option[string], 0, len(records))
	for i := len(records) - 1; i >= 0; i-- { // newest first
		r := records[i]
		label := fmt.Sprintf("%s  %s  %s", r.Tag, r.Timestamp.Local().Format("Jan 2 15:04"), r.Message)
		if r.ToolCount > 0 {
			label += fmt.Sprintf(" (%d tool checkpoints)", r.ToolCount)
		}
		options = append(options, huh.NewOption(label, r.Tag))
	}

	var selected string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Restore to which checkpoint?").
			Options(options...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Restore cancelled")
			return checkpoint.Tag{}, NewSilentError(err)
		}
		return checkpoint.Tag{}, err
	}

	return checkpoint.ParseTag(selected)
}

func confirmRestore(tag checkpoint.Tag) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("refusing to restore without confirmation; pass --yes in non-interactive use")
	}

	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Restore workspace and history to checkpoint %s?", tag)).
			Description("Files changed since that checkpoint will be overwritten and later conversation messages discarded.").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}
