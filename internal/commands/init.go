package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/accounts"
	"github.com/cleared-dev/reconcile/internal/config"
)

// aliasTemplate shows the layout of the account name map: each column is one
// account, the first row its canonical name, the rows below aliases.
var aliasTemplate = map[string][]string{
	"Checking":    {"Checking ...1234"},
	"Credit Card": {"Card ...5678"},
}

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new reconcile project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir)
		},
	}
	return cmd
}

func runInit(out io.Writer, dir string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfg := config.Default()

	// Create directory structure.
	dirs := []string{
		"logs",
		"import",
		filepath.Join("import", "processed"),
		cfg.Output.Dir,
		filepath.Dir(cfg.Storage.DatabasePath),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write reconcile.yaml.
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the account name map template.
	if err := writeAliasTemplate(filepath.Join(dir, cfg.Aliases.Path)); err != nil {
		return fmt.Errorf("writing account name map: %w", err)
	}

	// Write .gitignore.
	gitignore := filepath.Dir(cfg.Storage.DatabasePath) + "/\n" + cfg.Output.Dir + "/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Write import/.gitkeep.
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	fmt.Fprintf(out, "Initialized reconcile project at %s\n", dir)
	return nil
}

func writeAliasTemplate(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := accounts.WriteAliases(f, accounts.NewTable(aliasTemplate)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
