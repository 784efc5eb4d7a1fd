// Package config provides the configuration system for rewind.
//
// # Architecture
//
// Configuration is assembled from three sources, later ones overriding
// earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← REWIND_SECTION_KEY
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/rewind/config.toml (or .yaml)
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller on top of the result.
//
// # Sub-packages
//
//   - loader: TOML, YAML and environment sources
//   - watcher: fsnotify-based file watching for live reload
//
// # Basic Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    return err
//	}
//	tl, err := history.New(target, cfg.History.TimelineOptions()...)
//
// # Live Reload
//
// A Reloader re-reads the file when it changes and hands the new
// configuration to subscribers. Only history settings are meant to be
// applied live; logging and store settings take effect on restart.
//
//	r, _ := config.NewReloader(path, cfg)
//	r.Subscribe(func(c *config.Config) {
//	    tl.SetCheckpointThreshold(c.History.CheckpointThreshold)
//	    tl.SetCostTable(c.History.CostTable())
//	})
//
// # Example File
//
//	[history]
//	checkpoint_threshold = 2000
//	high_cost = 1000
//
//	[history.costs]
//	fill = 10
//
//	[logging]
//	level = "debug"
//	format = "json"
//	file = "/var/log/rewind.log"
//
//	[script]
//	instruction_limit = 500000
//	timeout = "2s"
package config
