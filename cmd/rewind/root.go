package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dshills/rewind/internal/app"
	"github.com/dshills/rewind/internal/config"
	"github.com/dshills/rewind/internal/store"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath  string
	logLevel    string
	storePath   string
	metricsFile string
}

// env is the per-invocation runtime built in PersistentPreRunE.
type env struct {
	opts     *globalOptions
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	app      *app.App
	registry *prometheus.Registry
	closers  []func() error
}

func (e *env) close() error {
	var errs []error
	if e.metricsFileSet() {
		if err := prometheus.WriteToTextfile(e.opts.metricsFile, e.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func (e *env) metricsFileSet() bool {
	return e.opts.metricsFile != "" && e.registry != nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "rewind",
		Short: "Record, rewind and replay canvas drawing scripts",
		Long: `rewind runs Lua drawing scripts against a tracked canvas and keeps a
timeline of every mutation. Stored timelines can be undone, redone, tagged
and exported as PNG at any position.

Examples:
  rewind run draw.lua                 # Draw on a new 300x150 canvas
  rewind undo 3f2a 2                  # Step back two transactions
  rewind tag 3f2a sketch              # Name the current position
  rewind jump 3f2a sketch             # Go back to the latest "sketch" tag
  rewind seek 3f2a 5 --png out.png    # Jump to transaction 5 and export`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "Path to configuration file (TOML or YAML)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.storePath, "store", "", "Timeline store directory")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	root.AddCommand(
		newRunCmd(e),
		newSeekCmd(e),
		newUndoCmd(e),
		newRedoCmd(e),
		newTagCmd(e),
		newJumpCmd(e),
		newExportCmd(e),
		newInspectCmd(e),
		newListCmd(e),
		newDeleteCmd(e),
	)
	return root
}

func (e *env) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(e.opts.configPath)
	if err != nil {
		return err
	}
	if e.opts.logLevel != "" {
		cfg.Logging.Level = e.opts.logLevel
	}
	if e.opts.storePath != "" {
		cfg.Store.Path = e.opts.storePath
		cfg.Store.InMemory = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg

	logger, closeLog, err := app.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	e.logger = logger.With("command", cmd.Name())
	e.closers = append(e.closers, closeLog)

	storeCfg := store.DefaultConfig()
	storeCfg.Path = cfg.Store.Path
	storeCfg.InMemory = cfg.Store.InMemory
	storeCfg.Logger = e.logger
	// One-shot commands do not live long enough for value log GC.
	storeCfg.GCInterval = 0
	st, err := store.Open(storeCfg)
	if err != nil {
		_ = e.close()
		return err
	}
	e.store = st
	e.closers = append(e.closers, st.Close)

	e.registry = prometheus.NewRegistry()
	e.app = app.New(cfg, st,
		app.WithLogger(e.logger),
		app.WithMetrics(app.NewMetrics(e.registry)))

	e.logger.Debug("ready", "config", e.opts.configPath, "store", cfg.Store.Path)
	return nil
}

// runE wraps a command body so the runtime is torn down whether or not
// the body fails.
func (e *env) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if cerr := e.close(); cerr != nil && err == nil {
			err = cerr
		}
		return err
	}
}

// watchConfig applies config file edits to open sessions until the
// command finishes.
func (e *env) watchConfig() {
	if _, err := os.Stat(e.opts.configPath); err != nil {
		e.logger.Debug("config file not watched", "path", e.opts.configPath, "error", err)
		return
	}
	r, err := config.NewReloader(e.opts.configPath, e.cfg, config.WithReloadLogger(e.logger))
	if err != nil {
		e.logger.Warn("config watcher unavailable", "error", err)
		return
	}
	r.Subscribe(e.app.ApplyConfig)
	e.closers = append(e.closers, r.Close)
}
