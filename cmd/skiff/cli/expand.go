package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/skiffchat/cli/cmd/skiff/cli/checkpoint"
	"github.com/skiffchat/cli/cmd/skiff/cli/jsonutil"

	"github.com/spf13/cobra"
)

func newExpandCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "expand <tag>",
		Short: "Show the tool checkpoints folded under a turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := checkpoint.ParseTag(args[0])
			if err != nil {
				return err
			}

			mgr, _, err := openManager(cmd.Context())
			if err != nil {
				return err
			}

			records, err := mgr.Expand(tag)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := jsonutil.MarshalIndentWithNewline(records, "", "  ")
				if err != nil {
					return err
				}
				fmt.Print(string(data))
				return nil
			}

			if len(records) == 0 {
				fmt.Printf("Checkpoint %s has no tool checkpoints\n", tag)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tWHEN\tTOOL\tMESSAGE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					r.Tag, r.Timestamp.Local().Format("Jan 2 15:04:05"), r.ToolName, r.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON")

	return cmd
}
