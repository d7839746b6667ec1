package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/buildinfo"
	"github.com/cleared-dev/reconcile/internal/config"
	"github.com/cleared-dev/reconcile/internal/id"
	"github.com/cleared-dev/reconcile/internal/logger"
	"github.com/cleared-dev/reconcile/internal/runlog"
	"github.com/cleared-dev/reconcile/internal/store"
)

const dateFormat = "2006-01-02"

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "reconcile",
		Short:   "Find duplicate and matching transactions across exports",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.FileName, "path to "+config.FileName)
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log at debug level")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newImportCommand(opts))
	rootCmd.AddCommand(newDatasetsCommand(opts))
	rootCmd.AddCommand(newDedupeCommand(opts))
	rootCmd.AddCommand(newCompareCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))
	rootCmd.AddCommand(newHistoryCommand(opts))

	return rootCmd
}

// project is everything a command needs once the config is loaded.
type project struct {
	root   string
	cfg    *config.Config
	store  *store.Store
	record *runlog.Recorder
}

func openProject(cmd *cobra.Command, opts *rootOptions) (*project, error) {
	path, err := filepath.Abs(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.debug {
		level = "debug"
	}
	log, err := logger.NewWithWriter(cmd.ErrOrStderr(), logger.Options{Level: level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	runID := id.NewRunID()
	log = log.With().Str("run", id.ShortRunID(runID)).Str("command", cmd.Name()).Logger()
	cmd.SetContext(logger.WithContext(cmd.Context(), log))

	return &project{
		root:   filepath.Dir(path),
		cfg:    cfg,
		store:  st,
		record: runlog.NewRecorder(runID, cmd.Name()),
	}, nil
}

// close flushes the run log and closes the store.
func (p *project) close(ctx context.Context) {
	log := logger.FromContext(ctx)
	if err := p.record.Flush(p.root); err != nil {
		log.Warn().Err(err).Msg("failed to write run log")
	}
	if err := p.store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close store")
	}
}

func parseRange(from, to string) (store.DateRange, error) {
	var r store.DateRange
	var err error
	if from != "" {
		if r.From, err = time.Parse(dateFormat, from); err != nil {
			return r, fmt.Errorf("parsing --from: %w", err)
		}
	}
	if to != "" {
		if r.To, err = time.Parse(dateFormat, to); err != nil {
			return r, fmt.Errorf("parsing --to: %w", err)
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return r, nil
}

// widen extends r by lookback days before and lookahead days after. Open ends
// stay open.
func widen(r store.DateRange, lookback, lookahead int) store.DateRange {
	if !r.From.IsZero() {
		r.From = r.From.AddDate(0, 0, -lookback)
	}
	if !r.To.IsZero() {
		r.To = r.To.AddDate(0, 0, lookahead)
	}
	return r
}
