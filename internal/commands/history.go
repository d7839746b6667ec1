package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/id"
	"github.com/cleared-dev/reconcile/internal/runlog"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	var run, dataset string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the decisions recorded in the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close(cmd.Context())

			entries, err := runlog.Read(p.root)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tRUN\tCOMMAND\tACTION\tDATASET\tKEY\tRELATED\tDETAILS")
			shown := 0
			for _, e := range entries {
				if run != "" && !strings.HasPrefix(e.RunID, run) {
					continue
				}
				if dataset != "" && e.Dataset != dataset {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format(time.DateTime), id.ShortRunID(e.RunID), e.Command,
					e.Action, e.Dataset, e.Key, e.RelatedKey, e.Details)
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching entries")
				return nil
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&run, "run", "", "only entries of runs whose id starts with this")
	cmd.Flags().StringVar(&dataset, "dataset", "", "only entries for this dataset")

	return cmd
}
