package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/report"
)

const (
	exportAnalyzed = "analyzed"
	exportMint     = "mint"
)

func newExportCommand(root *rootOptions) *cobra.Command {
	var dataset, out, format string
	var dates rangeOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a dataset with its classifications to CSV",
		Long: `Write a dataset with its classifications to CSV.

The analyzed format carries the action and related id of every record. The
mint format writes Mint's export layout, for appending to a Mint history.
Use --out - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != exportAnalyzed && format != exportMint {
				return fmt.Errorf("unknown export format %q (known: %s, %s)", format, exportAnalyzed, exportMint)
			}
			r, err := parseRange(dates.from, dates.to)
			if err != nil {
				return err
			}

			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close(cmd.Context())

			ctx := cmd.Context()
			ds := p.store.Dataset(dataset)
			info, err := ds.Info(ctx)
			if err != nil {
				return err
			}
			records, err := ds.Fetch(ctx, r)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				if out == "" {
					name := report.AnalyzedName(dataset)
					if format == exportMint {
						name = dataset + "_mint_transactions.csv"
					}
					out = filepath.Join(p.cfg.Output.Dir, name)
				}
				if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
					return fmt.Errorf("creating output dir: %w", err)
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if format == exportMint {
				err = report.WriteMint(w, records, info.Convention)
			} else {
				err = report.WriteAnalyzed(w, records)
			}
			if err != nil {
				return fmt.Errorf("exporting %s: %w", dataset, err)
			}

			if out != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(records), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset to export (required)")
	_ = cmd.MarkFlagRequired("dataset")
	cmd.Flags().StringVar(&out, "out", "", "output file, - for stdout (defaults to a file in the output dir)")
	cmd.Flags().StringVar(&format, "format", exportAnalyzed, "analyzed or mint")
	dates.register(cmd)

	return cmd
}
