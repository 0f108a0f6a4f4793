package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/skiffchat/cli/cmd/skiff/cli/jsonutil"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List turn checkpoints",
		Long: `Lists turn-level checkpoints, oldest first. Tool-level checkpoints taken
within a turn stay folded; use 'skiff expand <tag>' to see them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, _, err := openManager(cmd.Context())
			if err != nil {
				return err
			}

			records, err := mgr.List(limit)
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
				fmt.Println("No checkpoints yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tWHEN\tTOOLS\tMESSAGE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					r.Tag, r.Timestamp.Local().Format("Jan 2 15:04:05"), r.ToolCount, r.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the most recent N checkpoints (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON")

	return cmd
}
