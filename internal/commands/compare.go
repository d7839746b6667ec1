package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/accounts"
	"github.com/cleared-dev/reconcile/internal/logger"
	"github.com/cleared-dev/reconcile/internal/model"
	"github.com/cleared-dev/reconcile/internal/prompt"
	"github.com/cleared-dev/reconcile/internal/reconcile"
	"github.com/cleared-dev/reconcile/internal/report"
	"github.com/cleared-dev/reconcile/internal/runlog"
)

type compareOptions struct {
	source     string
	reference  string
	dates      rangeOptions
	syncFields bool
}

func newCompareCommand(root *rootOptions) *cobra.Command {
	opts := &compareOptions{}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Pair the records of one dataset with those of another",
		Long: `Pair the records of one dataset with those of another.

Each source record is compared with reference records of the same flow
dated inside the match window and held by an equivalent account. A single
candidate is paired automatically; several are shown for you to pick from.
Source records without a counterpart are classified Investigate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.source == opts.reference {
				return fmt.Errorf("source and reference are both %s", opts.source)
			}
			r, err := parseRange(opts.dates.from, opts.dates.to)
			if err != nil {
				return err
			}

			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close(cmd.Context())

			ctx := cmd.Context()
			log := logger.FromContext(ctx)
			srcDS, refDS := p.store.Dataset(opts.source), p.store.Dataset(opts.reference)
			srcInfo, err := srcDS.Info(ctx)
			if err != nil {
				return err
			}
			refInfo, err := refDS.Info(ctx)
			if err != nil {
				return err
			}
			srcRecords, err := srcDS.Fetch(ctx, r)
			if err != nil {
				return err
			}
			// Reference records just outside the range can still be in a window.
			refRecords, err := refDS.Fetch(ctx, widen(r, p.cfg.MatchWindow().Lookback, p.cfg.MatchWindow().Lookahead))
			if err != nil {
				return err
			}

			aliases, err := accounts.Load(p.cfg.Aliases.Path)
			if err != nil {
				return err
			}
			if aliases == nil {
				log.Debug().Str("path", p.cfg.Aliases.Path).Msg("no account name map, matching account names exactly")
			}

			term := prompt.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
			config := reconcile.Config{
				Window:     p.cfg.MatchWindow(),
				Source:     srcInfo.Convention,
				Reference:  refInfo.Convention,
				ExcludeTag: p.cfg.Tags.Duplicate,
			}
			var sync *reconcile.FieldSync
			if opts.syncFields {
				sync = reconcile.NewFieldSync(term, srcDS, refDS, log)
				config.OnMatch = sync.OnMatch
			}

			rec, err := reconcile.New(config, aliases, term, log)
			if err != nil {
				return err
			}

			res, runErr := rec.Run(ctx,
				reconcile.Side{Name: opts.source, Records: srcRecords, Sink: srcDS},
				reconcile.Side{Name: opts.reference, Records: refRecords, Sink: refDS},
			)
			recordCompare(p, opts, srcRecords, res, sync)
			if runErr != nil {
				return runErr
			}

			if err := writeReport(ctx, p, report.AnalyzedName(opts.source), srcRecords); err != nil {
				return err
			}
			if err := writeReport(ctx, p, report.AnalyzedName(opts.reference), refRecords); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%d matched, %d to investigate, %d already resolved (%d asked)\n",
				res.Matched, res.Investigate, res.Skipped, res.Asked)
			if sync != nil {
				fmt.Fprintf(out, "%d record(s) updated from their pair\n", sync.Updated)
			}
			if n := len(res.WriteErrors) + syncFailures(sync); n > 0 {
				fmt.Fprintf(out, "%d update(s) failed, see logs/run-log.csv\n", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "dataset whose records are classified (required)")
	cmd.Flags().StringVar(&opts.reference, "reference", "", "dataset searched for counterparts (required)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("reference")
	cmd.Flags().BoolVar(&opts.syncFields, "sync-fields", false, "ask which side of a pair has the right payee, category, notes and tags")
	opts.dates.register(cmd)

	return cmd
}

func recordCompare(p *project, opts *compareOptions, srcRecords []*model.Transaction, res *reconcile.Result, sync *reconcile.FieldSync) {
	if res == nil {
		return
	}
	byKey := keyed(srcRecords)
	for _, l := range res.Links {
		p.record.Add(runlog.ActionMatched, opts.source, l.SourceKey, l.ComparisonKey, byKey[l.SourceKey].String())
	}
	for _, t := range srcRecords {
		if t.Classification == model.Investigate {
			p.record.Add(runlog.ActionInvestigate, opts.source, t.MustKey(), "", t.String())
		}
	}
	p.record.WriteFailures(opts.source, res.WriteErrors)
	p.record.Rejections(opts.source, res.Rejected)
	if sync != nil {
		if sync.Updated > 0 {
			p.record.Add(runlog.ActionFieldsSynced, opts.source, "", "",
				fmt.Sprintf("%d record(s) updated against %s", sync.Updated, opts.reference))
		}
		p.record.WriteFailures(opts.source, sync.Failures)
	}
}

func syncFailures(sync *reconcile.FieldSync) int {
	if sync == nil {
		return 0
	}
	return len(sync.Failures)
}
