package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/importer"
	"github.com/cleared-dev/reconcile/internal/logger"
	"github.com/cleared-dev/reconcile/internal/model"
	"github.com/cleared-dev/reconcile/internal/runlog"
)

type importOptions struct {
	format  string
	dataset string
	account string
	prepare importer.PrepareOptions
}

func newImportCommand(root *rootOptions) *cobra.Command {
	opts := &importOptions{}
	registry := importer.DefaultRegistry()

	cmd := &cobra.Command{
		Use:   "import <file|directory>",
		Short: "Load an export CSV into a dataset, replacing its records",
		Long: `Load an export CSV into a dataset, replacing its records.

Given a directory, every CSV directly inside it is loaded into the one
dataset and then moved to its processed/ subdirectory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := registry.Get(opts.format)
			if parser == nil {
				return fmt.Errorf("unknown format %q (known: %s)", opts.format, strings.Join(registry.Formats(), ", "))
			}
			if opts.dataset == "" {
				opts.dataset = parser.Format()
			}

			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close(cmd.Context())

			return runImport(cmd, p, parser, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "", "export format: "+strings.Join(registry.Formats(), ", ")+" (required)")
	_ = cmd.MarkFlagRequired("format")
	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "dataset name (defaults to the format)")
	cmd.Flags().StringVar(&opts.account, "account", "", "account name for every record, for exports without one")
	cmd.Flags().BoolVar(&opts.prepare.KeepPending, "keep-pending", false, "keep records that have not settled")
	cmd.Flags().BoolVar(&opts.prepare.KeepSplitParents, "keep-split-parents", false, "keep parents of split transactions")

	return cmd
}

func runImport(cmd *cobra.Command, p *project, parser importer.Parser, path string, opts *importOptions) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var files []importer.FileInfo
	if info.IsDir() {
		if files, err = importer.Scan(path); err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no CSV files in %s", path)
		}
	} else {
		files = []importer.FileInfo{{Name: info.Name(), Path: path, Size: info.Size()}}
	}

	var parsed []*model.Transaction
	for _, f := range files {
		txns, err := parseFile(parser, f.Path, importer.Options{Account: opts.account})
		if err != nil {
			return err
		}
		log.Debug().Str("file", f.Name).Int("records", len(txns)).Msg("parsed")
		// Positional keys continue across files.
		for _, t := range txns {
			if t.HasIndex {
				t.Index += len(parsed)
			}
		}
		parsed = append(parsed, txns...)
	}

	prepared, err := importer.Prepare(parsed, opts.prepare)
	if err != nil {
		return err
	}

	res, err := p.store.Import(ctx, opts.dataset, parser.Format(), parser.Convention(), prepared)
	if err != nil {
		return err
	}

	p.record.Rejections(opts.dataset, res.Rejected)
	p.record.Add(runlog.ActionImported, opts.dataset, "", "",
		fmt.Sprintf("%d records from %d file(s), %d dropped", res.Stored, len(files), len(parsed)-len(prepared)))
	log.Info().
		Str("dataset", opts.dataset).
		Int("stored", res.Stored).
		Int("dropped", len(parsed)-len(prepared)).
		Int("rejected", len(res.Rejected)).
		Msg("imported")

	if info.IsDir() {
		for _, f := range files {
			if err := importer.MarkProcessed(path, f.Name); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records into %s (%d dropped, %d rejected)\n",
		res.Stored, opts.dataset, len(parsed)-len(prepared), len(res.Rejected))
	return nil
}

func parseFile(parser importer.Parser, path string, opts importer.Options) ([]*model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txns, err := parser.Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return txns, nil
}
