// Package config loads the settings shared by the batch and the dashboard.
// Values are layered: built-in defaults, then the YAML file, then a .env
// file and WIFIREVIEW_* environment variables. Command-line flags are
// applied last by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Lexicon  LexiconConfig  `yaml:"lexicon"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// InputConfig locates the review files and the optional product catalog.
type InputConfig struct {
	ReviewDir   string `yaml:"review_dir"`
	ProductsCSV string `yaml:"products_csv"`
}

// LexiconConfig locates the word lists. Missing files fall back to empty
// sets (stopwords, sentiment) or the built-in table (categories).
type LexiconConfig struct {
	Stopwords  string   `yaml:"stopwords"`
	Positive   string   `yaml:"positive"`
	Negative   string   `yaml:"negative"`
	Categories string   `yaml:"categories"`
	UserDicts  []string `yaml:"user_dicts"`

	// BaseURL, when set, is where missing word lists are downloaded from.
	BaseURL   string `yaml:"base_url"`
	URLSuffix string `yaml:"url_suffix"`
}

// AnalysisConfig tunes the batch driver.
type AnalysisConfig struct {
	Workers           int      `yaml:"workers"`
	Seed              uint64   `yaml:"seed"`
	KeywordExclusions []string `yaml:"keyword_exclusions"`
}

// OutputConfig controls the flat-file sinks.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	CSV     *bool  `yaml:"csv"`
	Reports *bool  `yaml:"reports"`
}

// CSVEnabled reports whether the CSV tables are written (default true).
func (o OutputConfig) CSVEnabled() bool { return o.CSV == nil || *o.CSV }

// ReportsEnabled reports whether reports/<id>.json is written (default true).
func (o OutputConfig) ReportsEnabled() bool { return o.Reports == nil || *o.Reports }

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver        string        `yaml:"driver"`
	DSN           string        `yaml:"dsn"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ServerConfig is used by the dashboard.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WIFIREVIEW_"

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Input.ReviewDir == "" {
		c.Input.ReviewDir = "reviews"
	}
	if c.Lexicon.Stopwords == "" {
		c.Lexicon.Stopwords = "stopwords.txt"
	}
	if c.Lexicon.Positive == "" {
		c.Lexicon.Positive = "positive.txt"
	}
	if c.Lexicon.Negative == "" {
		c.Lexicon.Negative = "negative.txt"
	}
	if c.Analysis.Workers <= 0 {
		c.Analysis.Workers = 4
	}
	if c.Analysis.KeywordExclusions == nil {
		c.Analysis.KeywordExclusions = []string{"路由器", "款"}
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "wifireview.db"
	}
	if c.Database.BatchSize <= 0 {
		c.Database.BatchSize = 20
	}
	if c.Database.FlushInterval == 0 {
		c.Database.FlushInterval = 2 * time.Second
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8888"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Load reads path (skipped when empty), then envFile (skipped when empty or
// missing), applies environment overrides and fills defaults.
func Load(path, envFile string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	if envFile != "" {
		// Load keeps variables that are already set in the environment.
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Defaults()
	return cfg, nil
}

// ApplyEnv overrides fields from WIFIREVIEW_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	strs := map[string]*string{
		"REVIEW_DIR":   &c.Input.ReviewDir,
		"PRODUCTS_CSV": &c.Input.ProductsCSV,
		"STOPWORDS":    &c.Lexicon.Stopwords,
		"POSITIVE":     &c.Lexicon.Positive,
		"NEGATIVE":     &c.Lexicon.Negative,
		"CATEGORIES":   &c.Lexicon.Categories,
		"LEXICON_URL":  &c.Lexicon.BaseURL,
		"OUT_DIR":      &c.Output.Dir,
		"DB_DRIVER":    &c.Database.Driver,
		"DB_DSN":       &c.Database.DSN,
		"LISTEN":       &c.Server.Listen,
		"LOG_LEVEL":    &c.Log.Level,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", EnvPrefix, err)
		}
		c.Analysis.Workers = n
	}
	if v, ok := get("SEED"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}
		c.Analysis.Seed = n
	}
	if v, ok := get("BATCH_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBATCH_SIZE: %w", EnvPrefix, err)
		}
		c.Database.BatchSize = n
	}
	return nil
}
