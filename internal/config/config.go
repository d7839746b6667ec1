package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/reconcile/internal/dedupe"
	"github.com/cleared-dev/reconcile/internal/matcher"
)

// FileName is the config file a project directory carries.
const FileName = "reconcile.yaml"

// Environment overrides, applied after the file is read.
const (
	EnvDBPath   = "RECONCILE_DB_PATH"
	EnvLogLevel = "RECONCILE_LOG_LEVEL"
)

// Config represents the top-level reconcile.yaml configuration.
type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Dedupe  DedupeConfig  `yaml:"dedupe"`
	Tags    TagsConfig    `yaml:"tags"`
	Storage StorageConfig `yaml:"storage"`
	Aliases AliasesConfig `yaml:"aliases"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// WindowConfig is the cross-dataset date window in days.
type WindowConfig struct {
	LookbackDays  int `yaml:"lookback_days"`
	LookaheadDays int `yaml:"lookahead_days"`
}

// DedupeConfig controls duplicate detection inside one dataset.
type DedupeConfig struct {
	LookbackDays     int  `yaml:"lookback_days"`
	AskUpdateNonDups bool `yaml:"ask_update_non_dups"`
}

// TagsConfig names the tags runs read and write.
type TagsConfig struct {
	NotDuplicate string   `yaml:"not_duplicate"`
	Skip         []string `yaml:"skip"`
	Duplicate    string   `yaml:"duplicate"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// AliasesConfig locates the account alias table. A missing file means exact
// account matching.
type AliasesConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig is where report files are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // auto, console, json
}

// Load reads a reconcile.yaml file from disk. A .env file next to it is
// loaded first so ${VAR} references and overrides can come from it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Missing .env is fine.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	d := dedupe.DefaultConfig()
	w := matcher.DefaultWindow()
	return &Config{
		Window: WindowConfig{
			LookbackDays:  w.Lookback,
			LookaheadDays: w.Lookahead,
		},
		Dedupe: DedupeConfig{
			LookbackDays: d.Lookback,
		},
		Tags: TagsConfig{
			NotDuplicate: d.NotDuplicateTag,
			Skip:         d.SkipTags,
			Duplicate:    d.DuplicateTag,
		},
		Storage: StorageConfig{
			DatabasePath: "data/reconcile.db",
		},
		Aliases: AliasesConfig{
			Path: "account_name_map.csv",
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Validate checks the values runs depend on.
func (c *Config) Validate() error {
	if err := c.MatchWindow().Validate(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if c.Dedupe.LookbackDays < 0 {
		return fmt.Errorf("dedupe: %w: lookback %d is negative", matcher.ErrInvalidWindow, c.Dedupe.LookbackDays)
	}
	if strings.TrimSpace(c.Tags.NotDuplicate) == "" {
		return errors.New("tags: not_duplicate must be set")
	}
	if strings.TrimSpace(c.Tags.Duplicate) == "" {
		return errors.New("tags: duplicate must be set")
	}
	if c.Storage.DatabasePath == "" {
		return errors.New("storage: database_path must be set")
	}
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	return nil
}

// MatchWindow is the cross-dataset window.
func (c *Config) MatchWindow() matcher.Window {
	return matcher.Window{Lookback: c.Window.LookbackDays, Lookahead: c.Window.LookaheadDays}
}

// DetectorConfig builds the detector configuration for a dataset using conv.
func (c *Config) DetectorConfig(conv matcher.Convention) dedupe.Config {
	return dedupe.Config{
		Lookback:        c.Dedupe.LookbackDays,
		NotDuplicateTag: c.Tags.NotDuplicate,
		SkipTags:        c.Tags.Skip,
		DuplicateTag:    c.Tags.Duplicate,
		AskEdits:        c.Dedupe.AskUpdateNonDups,
		Convention:      conv,
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// resolvePaths makes relative paths relative to the config file's directory.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Storage.DatabasePath, &c.Aliases.Path, &c.Output.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
