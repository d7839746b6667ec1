package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDatasetsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List imported datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close(cmd.Context())

			infos, err := p.store.Datasets(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No datasets imported")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFORMAT\tCONVENTION\tRECORDS")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", info.Name, info.Format, info.Convention, info.Records)
			}
			return tw.Flush()
		},
	}
}
