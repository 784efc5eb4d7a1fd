package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/rewind/internal/config/loader"
	"github.com/dshills/rewind/internal/engine/history"
)

// Config is the complete rewind configuration.
type Config struct {
	History History `yaml:"history"`
	Logging Logging `yaml:"logging"`
	Store   Store   `yaml:"store"`
	Script  Script  `yaml:"script"`
}

// History holds timeline settings.
type History struct {
	// CheckpointThreshold is the accumulated cost that triggers a checkpoint.
	CheckpointThreshold int `yaml:"checkpoint_threshold"`

	// HighCost is charged for operations that replace pixel data wholesale.
	HighCost int `yaml:"high_cost"`

	// Costs overrides the cost of individual operations.
	Costs map[string]int `yaml:"costs,omitempty"`
}

// Logging holds log output settings.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto, text or json
	File   string `yaml:"file,omitempty"`

	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
}

// Store holds timeline persistence settings.
type Store struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// Script holds Lua sandbox limits.
type Script struct {
	InstructionLimit int64         `yaml:"instruction_limit"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		History: History{
			CheckpointThreshold: history.DefaultCheckpointThreshold,
			HighCost:            history.HighCost,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Store: Store{
			Path: filepath.Join(defaultDataDir(), "timelines"),
		},
		Script: Script{
			InstructionLimit: 1_000_000,
			Timeout:          5 * time.Second,
		},
	}
}

// Load builds a configuration from the defaults, the file at path and
// REWIND_* environment variables, in increasing priority. An empty path
// skips the file; a missing file is not an error.
func Load(path string) (*Config, error) {
	return load(path, loader.NewEnvLoader(loader.DefaultEnvPrefix))
}

func load(path string, env loader.Loader) (*Config, error) {
	merged := map[string]any{}

	if path != "" {
		data, err := loader.ForFile(path).Load()
		if err != nil {
			var perr *loader.ParseError
			if errors.As(err, &perr) {
				return nil, &ParseError{Path: perr.Path, Line: perr.Line, Column: perr.Column, Message: perr.Message, Err: err}
			}
			return nil, err
		}
		merged = loader.Merge(merged, data)
	}

	if env != nil {
		data, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
		merged = loader.Merge(merged, data)
	}

	cfg := Default()
	if err := decode(merged, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays the merged map onto cfg. Keys absent from the map keep
// the values already in cfg.
func decode(merged map[string]any, cfg *Config) error {
	if len(merged) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks every setting and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, msg string, value any, code ValidationErrorCode) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
	}

	if c.History.CheckpointThreshold <= 0 {
		add("history.checkpoint_threshold", "must be positive", c.History.CheckpointThreshold, ErrCodeOutOfRange)
	}
	if c.History.HighCost < 0 {
		add("history.high_cost", "must not be negative", c.History.HighCost, ErrCodeOutOfRange)
	}
	for op, cost := range c.History.Costs {
		if cost < 0 {
			add("history.costs."+op, "must not be negative", cost, ErrCodeOutOfRange)
		}
	}

	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		add("logging.level", "must be debug, info, warn or error", c.Logging.Level, ErrCodeInvalidEnum)
	}
	if !oneOf(c.Logging.Format, "auto", "text", "json") {
		add("logging.format", "must be auto, text or json", c.Logging.Format, ErrCodeInvalidEnum)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		add("logging", "rotation limits must not be negative", c.Logging.MaxSizeMB, ErrCodeOutOfRange)
	}

	if !c.Store.InMemory && c.Store.Path == "" {
		add("store.path", "required unless store.in_memory is set", c.Store.Path, ErrCodeRequiredMissing)
	}

	if c.Script.InstructionLimit <= 0 {
		add("script.instruction_limit", "must be positive", c.Script.InstructionLimit, ErrCodeOutOfRange)
	}
	if c.Script.Timeout <= 0 {
		add("script.timeout", "must be positive", c.Script.Timeout, ErrCodeOutOfRange)
	}

	return errors.Join(errs...)
}

// CostTable returns the history cost table described by the settings.
func (h History) CostTable() history.CostTable {
	table := history.DefaultCostTable()
	for op, cost := range table {
		if cost == history.HighCost {
			table[op] = h.HighCost
		}
	}
	for op, cost := range h.Costs {
		table[history.OperationID(op)] = cost
	}
	return table
}

// TimelineOptions returns the history options for these settings.
func (h History) TimelineOptions() []history.Option {
	return []history.Option{
		history.WithCheckpointThreshold(h.CheckpointThreshold),
		history.WithCostTable(h.CostTable()),
	}
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func oneOf(s string, options ...string) bool {
	s = strings.ToLower(s)
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(defaultConfigDir(), "config.toml")
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rewind")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "rewind")
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "rewind")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "rewind")
}
