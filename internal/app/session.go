package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/rewind/internal/engine/canvas"
	"github.com/dshills/rewind/internal/engine/history"
	"github.com/dshills/rewind/internal/engine/tracking"
	"github.com/dshills/rewind/internal/plugin/lua"
	"github.com/dshills/rewind/internal/store"
)

// Session is one tracked canvas and its timeline.
type Session struct {
	app     *App
	meta    store.Meta
	canvas  *canvas.Context
	tracker *tracking.Tracker
	logger  *slog.Logger
}

// ID returns the timeline ID.
func (s *Session) ID() uuid.UUID { return s.meta.ID }

// Name returns the display name given at creation.
func (s *Session) Name() string { return s.meta.Name }

// Meta returns the metadata from the last load or save.
func (s *Session) Meta() store.Meta { return s.meta }

// Canvas returns the tracked canvas.
func (s *Session) Canvas() *canvas.Context { return s.canvas }

// Tracker returns the canvas tracker.
func (s *Session) Tracker() *tracking.Tracker { return s.tracker }

// Timeline returns the session timeline.
func (s *Session) Timeline() *history.Timeline { return s.tracker.Timeline() }

// RunScript executes the Lua file at path against the canvas. Script
// output goes to out. Mutations made before a failure stay recorded.
func (s *Session) RunScript(ctx context.Context, path string, out io.Writer) error {
	return s.run(ctx, path, out, func(st *lua.State) error {
		return st.DoFile(ctx, path)
	})
}

// RunString executes Lua source against the canvas.
func (s *Session) RunString(ctx context.Context, code string, out io.Writer) error {
	return s.run(ctx, "<string>", out, func(st *lua.State) error {
		return st.DoString(ctx, code)
	})
}

func (s *Session) run(ctx context.Context, name string, out io.Writer, fn func(*lua.State) error) error {
	cfg := s.app.Config().Script
	st, err := lua.NewState(
		lua.WithExecutionTimeout(cfg.Timeout),
		lua.WithInstructionLimit(cfg.InstructionLimit),
		lua.WithOutput(out),
	)
	if err != nil {
		return NewOperationError("run", name, err)
	}
	defer st.Close()

	if err := lua.BindTracker(st, s.tracker); err != nil {
		return NewOperationError("run", name, err)
	}

	start := time.Now()
	err = fn(st)
	elapsed := time.Since(start)

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, lua.ErrExecutionTimeout):
		status = "timeout"
	case errors.Is(err, lua.ErrInstructionLimit):
		status = "limit"
	default:
		status = "error"
	}
	if s.app.metrics != nil {
		s.app.metrics.observeScript(status, elapsed)
	}

	tl := s.Timeline()
	s.logger.Info("script finished",
		"script", name,
		"status", status,
		"duration", elapsed,
		"position", tl.Position(),
		"pending", len(tl.Pending()))
	if err != nil {
		return NewOperationError("run", name, fmt.Errorf("%w: %w", ErrScript, err))
	}
	return nil
}

// Save stores the timeline, including uncommitted commands.
func (s *Session) Save(ctx context.Context) error {
	tl := s.Timeline()
	data, err := tl.Encode()
	if err != nil {
		return NewOperationError("save", s.meta.ID.String(), err)
	}

	meta := s.meta
	meta.Width = s.canvas.Width()
	meta.Height = s.canvas.Height()
	meta.Oldest = tl.Oldest()
	meta.Position = tl.Position()
	meta.Newest = tl.Newest()

	saved, err := s.app.store.Save(ctx, meta, data)
	if err != nil {
		return NewOperationError("save", s.meta.ID.String(), err)
	}
	s.meta = saved
	s.logger.Debug("session saved", "bytes", len(data))
	return nil
}

// ExportPNG writes the canvas at its current position as PNG.
func (s *Session) ExportPNG(w io.Writer) error {
	if err := s.canvas.EncodePNG(w); err != nil {
		return NewOperationError("export", s.meta.ID.String(), err)
	}
	return nil
}

// Close detaches the session from its App. It does not save.
func (s *Session) Close() {
	s.app.release(s.meta.ID)
}
