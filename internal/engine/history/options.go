package history

import (
	"io"
	"log/slog"
)

// DefaultCheckpointThreshold is the accumulated cost after which a new
// checkpoint is taken.
const DefaultCheckpointThreshold = 5000

// Option is a functional option for configuring a Timeline.
type Option func(*Timeline)

// WithCheckpointThreshold sets the checkpoint threshold.
// Non-positive values are ignored.
func WithCheckpointThreshold(threshold int) Option {
	return func(t *Timeline) {
		if threshold > 0 {
			t.threshold = threshold
		}
	}
}

// WithCostTable sets the per-operation cost table.
func WithCostTable(costs CostTable) Option {
	return func(t *Timeline) {
		if costs != nil {
			t.costs = costs
		}
	}
}

// WithObserver installs an observer notified of timeline events.
func WithObserver(o Observer) Option {
	return func(t *Timeline) {
		if o != nil {
			t.observer = o
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Timeline) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Observer receives timeline events. Implementations must not call back
// into the timeline.
type Observer interface {
	// OnCommit is called after a transaction is appended.
	OnCommit(tx *Transaction)

	// OnCheckpoint is called after a checkpoint is taken.
	OnCheckpoint(cp *Checkpoint)

	// OnNavigate is called after undo or redo lands on a new position.
	// replayed is the number of transactions applied to get there.
	OnNavigate(from, to, replayed int)

	// OnTruncate is called after forward history is discarded.
	OnTruncate(dropped int)
}

type nopObserver struct{}

func (nopObserver) OnCommit(*Transaction)    {}
func (nopObserver) OnCheckpoint(*Checkpoint) {}
func (nopObserver) OnNavigate(_, _, _ int)   {}
func (nopObserver) OnTruncate(int)           {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
