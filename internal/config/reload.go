package config

import (
	"log/slog"
	"sync"

	"github.com/dshills/rewind/internal/config/watcher"
)

// Reloader keeps a configuration in sync with its file. Subscribers are
// called with the new configuration after each successful reload; a file
// that fails to load or validate leaves the current configuration in place.
type Reloader struct {
	mu      sync.RWMutex
	path    string
	current *Config
	subs    []func(*Config)

	watcher *watcher.Watcher
	logger  *slog.Logger
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithReloadLogger sets the logger for reload failures.
func WithReloadLogger(logger *slog.Logger) ReloaderOption {
	return func(r *Reloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReloader watches path and reloads cfg from it when it changes.
func NewReloader(path string, cfg *Config, opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{
		path:    path,
		current: cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "config")

	w, err := watcher.New()
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return nil, err
	}
	w.OnChange(r.handleFileChange)
	r.watcher = w
	return r, nil
}

// Current returns the most recently loaded configuration.
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Subscribe registers fn to receive reloaded configurations.
func (r *Reloader) Subscribe(fn func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// Close stops watching the file.
func (r *Reloader) Close() error {
	return r.watcher.Close()
}

func (r *Reloader) handleFileChange(event watcher.Event) {
	if event.Op == watcher.OpRemove || event.Op == watcher.OpRename {
		r.logger.Debug("config file went away, keeping current settings", "path", event.Path)
		return
	}

	cfg, err := Load(r.path)
	if err != nil {
		r.logger.Warn("config reload failed", "path", event.Path, "error", err)
		return
	}

	r.mu.Lock()
	r.current = cfg
	subs := make([]func(*Config), len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	r.logger.Info("config reloaded", "path", event.Path, "op", event.Op.String())
	for _, fn := range subs {
		fn(cfg)
	}
}
