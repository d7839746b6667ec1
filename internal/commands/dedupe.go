package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/dedupe"
	"github.com/cleared-dev/reconcile/internal/logger"
	"github.com/cleared-dev/reconcile/internal/model"
	"github.com/cleared-dev/reconcile/internal/prompt"
	"github.com/cleared-dev/reconcile/internal/report"
	"github.com/cleared-dev/reconcile/internal/runlog"
)

type rangeOptions struct {
	from string
	to   string
}

func (o *rangeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.from, "from", "", "first date to include, YYYY-MM-DD")
	cmd.Flags().StringVar(&o.to, "to", "", "last date to include, YYYY-MM-DD")
}

func newDedupeCommand(root *rootOptions) *cobra.Command {
	var dataset string
	var dates rangeOptions

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Find duplicate records inside one dataset",
		Long: `Find duplicate records inside one dataset.

Records of the same account with the same amount, dated within the dedupe
lookback of each other, are shown together. Enter the key of the record to
mark as duplicate, or n when none are.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			log := logger.FromContext(ctx)
			ds := p.store.Dataset(dataset)
			info, err := ds.Info(ctx)
			if err != nil {
				return err
			}
			records, err := ds.Fetch(ctx, r)
			if err != nil {
				return err
			}

			term := prompt.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
			det, err := dedupe.NewDetector(p.cfg.DetectorConfig(info.Convention), term, ds, log)
			if err != nil {
				return err
			}

			res, runErr := det.Run(ctx, records)
			recordDedupe(p, dataset, records, res)
			if err := writeDeleted(ctx, p, records, res); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d group(s) reviewed: %d marked duplicate, %d confirmed unique\n",
				res.Groups, len(res.Deleted), len(res.NotDuplicate))
			if len(res.WriteErrors) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d update(s) failed, see %s\n", len(res.WriteErrors), filepath.Join("logs", "run-log.csv"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset to check (required)")
	_ = cmd.MarkFlagRequired("dataset")
	dates.register(cmd)

	return cmd
}

func recordDedupe(p *project, dataset string, records []*model.Transaction, res *dedupe.Result) {
	if res == nil {
		return
	}
	byKey := keyed(records)
	for _, key := range res.Deleted {
		t := byKey[key]
		p.record.Add(runlog.ActionDeleted, dataset, key, t.RelatedKey, t.String())
	}
	for _, key := range res.NotDuplicate {
		p.record.Add(runlog.ActionNotDuplicate, dataset, key, "", byKey[key].String())
	}
	p.record.WriteFailures(dataset, res.WriteErrors)
	p.record.Rejections(dataset, res.Rejected)
}

// writeDeleted lists the records marked in this run, for the human to remove
// from the source system.
func writeDeleted(ctx context.Context, p *project, records []*model.Transaction, res *dedupe.Result) error {
	if res == nil || len(res.Deleted) == 0 {
		return nil
	}
	byKey := keyed(records)
	deleted := make([]*model.Transaction, 0, len(res.Deleted))
	for _, key := range res.Deleted {
		deleted = append(deleted, byKey[key])
	}
	return writeReport(ctx, p, report.DeletedName(time.Now()), deleted)
}

func writeReport(ctx context.Context, p *project, name string, txns []*model.Transaction) error {
	if err := os.MkdirAll(p.cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(p.cfg.Output.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer f.Close()

	if err := report.WriteAnalyzed(f, txns); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("file", path).Int("records", len(txns)).Msg("report written")
	return nil
}

func keyed(records []*model.Transaction) map[string]*model.Transaction {
	out := make(map[string]*model.Transaction, len(records))
	for _, t := range records {
		if key, err := t.Key(); err == nil {
			out[key] = t
		}
	}
	return out
}
