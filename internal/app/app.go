package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/rewind/internal/config"
	"github.com/dshills/rewind/internal/engine/canvas"
	"github.com/dshills/rewind/internal/engine/history"
	"github.com/dshills/rewind/internal/engine/tracking"
	"github.com/dshills/rewind/internal/store"
)

// App owns the shared services sessions are built from.
type App struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    *store.Store
	metrics  *Metrics
	logger   *slog.Logger
	sessions map[uuid.UUID]*Session
}

// Option configures an App.
type Option func(*App)

// WithMetrics attaches a metrics observer to every session timeline.
func WithMetrics(m *Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an App. The store is owned by the caller.
func New(cfg *config.Config, st *store.Store, opts ...Option) *App {
	a := &App{
		cfg:      cfg,
		store:    st,
		logger:   slog.Default(),
		sessions: make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Store returns the timeline store.
func (a *App) Store() *store.Store {
	return a.store
}

// ApplyConfig swaps in a reloaded configuration and pushes its history
// settings to every open session. Other sections apply to new sessions.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	open := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		open = append(open, s)
	}
	a.mu.Unlock()

	for _, s := range open {
		tl := s.Timeline()
		tl.SetCheckpointThreshold(cfg.History.CheckpointThreshold)
		tl.SetCostTable(cfg.History.CostTable())
	}
	a.logger.Info("history settings applied",
		"sessions", len(open),
		"checkpoint_threshold", cfg.History.CheckpointThreshold)
}

// NewSession creates a blank canvas of the given size with tracking enabled.
// The session is not stored until Save is called.
func (a *App) NewSession(name string, width, height int) (*Session, error) {
	c, err := canvas.New(width, height)
	if err != nil {
		return nil, NewOperationError("create", name, err)
	}

	id := uuid.New()
	logger := a.sessionLogger(id)
	tr, err := tracking.Enable(c,
		tracking.WithLogger(logger),
		tracking.WithTimelineOptions(a.timelineOptions(logger)...))
	if err != nil {
		return nil, NewOperationError("create", name, err)
	}

	s := a.register(&Session{
		app:     a,
		meta:    store.Meta{ID: id, Name: name},
		canvas:  c,
		tracker: tr,
		logger:  logger,
	})
	logger.Debug("session created", "width", width, "height", height)
	return s, nil
}

// Open loads a stored timeline by full ID or unique prefix and rebuilds
// its canvas at the saved position.
func (a *App) Open(ctx context.Context, ref string) (*Session, error) {
	id, err := a.store.Resolve(ctx, ref)
	if err != nil {
		return nil, NewOperationError("open", ref, err)
	}
	meta, data, err := a.store.Load(ctx, id)
	if err != nil {
		return nil, NewOperationError("open", id.String(), err)
	}

	logger := a.sessionLogger(id)
	tl, err := history.Decode(data, a.timelineOptions(logger)...)
	if err != nil {
		return nil, NewOperationError("open", id.String(), err)
	}
	c, err := canvas.New(meta.Width, meta.Height)
	if err != nil {
		return nil, NewOperationError("open", id.String(), err)
	}
	if err := tl.Rebuild(c); err != nil {
		return nil, NewOperationError("open", id.String(), err)
	}
	tr, err := tracking.Resume(c, tl, tracking.WithLogger(logger))
	if err != nil {
		return nil, NewOperationError("open", id.String(), err)
	}

	s := a.register(&Session{
		app:     a,
		meta:    meta,
		canvas:  c,
		tracker: tr,
		logger:  logger,
	})
	logger.Debug("session opened", "position", tl.Position(), "newest", tl.Newest())
	return s, nil
}

// List returns stored timelines, most recently updated first.
func (a *App) List(ctx context.Context) ([]store.Meta, error) {
	return a.store.List(ctx)
}

// Delete removes a stored timeline by full ID or unique prefix.
func (a *App) Delete(ctx context.Context, ref string) (uuid.UUID, error) {
	id, err := a.store.Resolve(ctx, ref)
	if err != nil {
		return uuid.Nil, NewOperationError("delete", ref, err)
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return uuid.Nil, NewOperationError("delete", id.String(), err)
	}
	a.logger.Info("timeline deleted", "id", id)
	return id, nil
}

// Sessions returns the number of open sessions.
func (a *App) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func (a *App) register(s *Session) *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[s.meta.ID] = s
	return s
}

func (a *App) release(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, id)
}

func (a *App) sessionLogger(id uuid.UUID) *slog.Logger {
	return a.logger.With(slog.String("timeline", id.String()))
}

func (a *App) timelineOptions(logger *slog.Logger) []history.Option {
	cfg := a.Config()
	opts := cfg.History.TimelineOptions()
	opts = append(opts, history.WithLogger(logger))
	if a.metrics != nil {
		opts = append(opts, history.WithObserver(a.metrics))
	}
	return opts
}
