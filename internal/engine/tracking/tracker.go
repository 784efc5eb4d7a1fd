package tracking

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dshills/rewind/internal/engine/history"
)

// Object is a target that can enumerate its operations.
type Object interface {
	history.Target

	// Operations returns every operation the object supports.
	Operations() []history.OperationID
}

// Sealer is implemented by objects with operations that cannot be
// intercepted.
type Sealer interface {
	Sealed() []history.OperationID
}

// Queryer is implemented by objects that answer read-only operations.
type Queryer interface {
	Query(op history.OperationID, args ...history.Value) (history.Value, error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTable sets the classification table. The table is copied.
func WithTable(table Table) Option {
	return func(t *Tracker) {
		if table != nil {
			t.table = table.Clone()
		}
	}
}

// WithLogger sets the logger for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTimelineOptions passes options to the timeline created by Enable.
func WithTimelineOptions(opts ...history.Option) Option {
	return func(t *Tracker) {
		t.timelineOpts = append(t.timelineOpts, opts...)
	}
}

// Tracker records the mutations of one object in a timeline.
// All methods are safe for concurrent use; mutations and navigation are
// serialized.
type Tracker struct {
	mu sync.Mutex

	obj      Object
	timeline *history.Timeline
	table    Table

	modes  map[history.OperationID]Mode
	sealed map[history.OperationID]bool

	groupDepth int
	disabled   bool

	timelineOpts []history.Option
	logger       *slog.Logger
}

// Enable starts tracking obj with a fresh timeline. obj must implement
// Object; otherwise Enable fails with history.ErrPrecondition and nothing
// is changed.
func Enable(obj any, opts ...Option) (*Tracker, error) {
	t, err := newTracker(obj, opts)
	if err != nil {
		return nil, err
	}
	tl, err := history.New(t.obj, t.timelineOpts...)
	if err != nil {
		return nil, err
	}
	t.timeline = tl
	return t, nil
}

// Resume starts tracking obj with an existing timeline, typically one
// produced by history.Decode and brought up to date with Rebuild.
func Resume(obj any, tl *history.Timeline, opts ...Option) (*Tracker, error) {
	if tl == nil {
		return nil, fmt.Errorf("%w: nil timeline", history.ErrPrecondition)
	}
	t, err := newTracker(obj, opts)
	if err != nil {
		return nil, err
	}
	t.timeline = tl
	return t, nil
}

func newTracker(obj any, opts []Option) (*Tracker, error) {
	o, ok := obj.(Object)
	if !ok || o == nil {
		return nil, fmt.Errorf("%w: %T cannot be tracked", history.ErrPrecondition, obj)
	}

	t := &Tracker{
		obj:    o,
		table:  DefaultTable(),
		modes:  make(map[history.OperationID]Mode),
		sealed: make(map[history.OperationID]bool),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(slog.String("component", "tracking"))

	if s, ok := o.(Sealer); ok {
		for _, op := range s.Sealed() {
			t.sealed[op] = true
			t.logger.Warn("operation left untracked",
				slog.String("op", string(op)),
				slog.Any("error", fmt.Errorf("%w: %s", history.ErrImmutableField, op)))
		}
	}
	for _, op := range o.Operations() {
		if !t.sealed[op] {
			t.modes[op] = t.table.Mode(op)
		}
	}
	return t, nil
}

// Mode reports how op is handled. The second result is false for
// operations that are unsupported or sealed.
func (t *Tracker) Mode(op history.OperationID) (Mode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.modes[op]
	return m, ok
}

// Invoke performs op on the tracked object. Ignored operations are
// answered by the object's Query method. Recorded operations return a nil
// value.
func (t *Tracker) Invoke(op history.OperationID, args ...history.Value) (history.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disabled {
		return nil, ErrDisabled
	}

	if t.sealed[op] {
		return nil, t.obj.Apply(history.NewCommand(op, args, history.DefaultCost))
	}

	mode, ok := t.modes[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, op)
	}

	if mode == Ignore {
		q, ok := t.obj.(Queryer)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotQueryable, op)
		}
		return q.Query(op, args...)
	}

	if err := t.obj.Apply(history.NewCommand(op, args, history.DefaultCost)); err != nil {
		return nil, err
	}
	return nil, t.onMutationLocked(op, args, mode == Commit)
}

// Set assigns a field of the tracked object.
func (t *Tracker) Set(field string, value history.Value) error {
	_, err := t.Invoke(history.SetOperation(field), value)
	return err
}

// OnMutation records a mutation the caller has already performed on the
// object. When immediate is true and no group is open, the pending
// buffer is committed.
func (t *Tracker) OnMutation(op history.OperationID, args []history.Value, immediate bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disabled {
		return ErrDisabled
	}
	return t.onMutationLocked(op, args, immediate)
}

func (t *Tracker) onMutationLocked(op history.OperationID, args []history.Value, immediate bool) error {
	t.timeline.Record(op, args...)
	if immediate && t.groupDepth == 0 {
		return t.timeline.Commit(t.obj)
	}
	return nil
}

// Group runs fn with immediate commits suppressed, then commits everything
// fn recorded as one transaction. Groups nest; only the outermost commits.
func (t *Tracker) Group(fn func() error) error {
	t.mu.Lock()
	if t.disabled {
		t.mu.Unlock()
		return ErrDisabled
	}
	t.groupDepth++
	outer := t.groupDepth == 1
	t.mu.Unlock()

	var err error
	if outer {
		err = t.timeline.Group(t.obj, fn)
	} else {
		err = fn()
	}

	t.mu.Lock()
	t.groupDepth--
	t.mu.Unlock()
	return err
}

// Disable stops tracking and discards the timeline. The object keeps its
// current state. Later calls fail with ErrDisabled.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.disabled = true
	t.timeline = nil
	t.modes = nil
}

// Enabled reports whether the tracker is still active.
func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.disabled
}

// Object returns the tracked object.
func (t *Tracker) Object() Object {
	return t.obj
}

// Timeline returns the timeline, or nil after Disable.
func (t *Tracker) Timeline() *history.Timeline {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeline
}

// navigate runs fn against the timeline under the tracker lock.
func (t *Tracker) navigate(fn func(tl *history.Timeline) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disabled {
		return ErrDisabled
	}
	return fn(t.timeline)
}

// Commit commits pending commands.
func (t *Tracker) Commit() error {
	return t.navigate(func(tl *history.Timeline) error {
		return tl.Commit(t.obj)
	})
}

// Undo moves back steps transactions.
func (t *Tracker) Undo(steps int) error {
	return t.navigate(func(tl *history.Timeline) error {
		return tl.Undo(t.obj, steps)
	})
}

// Redo moves forward steps transactions.
func (t *Tracker) Redo(steps int) error {
	return t.navigate(func(tl *history.Timeline) error {
		return tl.Redo(t.obj, steps)
	})
}

// Seek moves to sequence number no.
func (t *Tracker) Seek(no int) error {
	return t.navigate(func(tl *history.Timeline) error {
		return tl.Seek(t.obj, no)
	})
}

// PutTag bookmarks the current position.
func (t *Tracker) PutTag(name string) error {
	return t.navigate(func(tl *history.Timeline) error {
		tl.PutTag(name)
		return nil
	})
}

// UndoTag jumps back to a matching tag. See history.Timeline.UndoTag.
func (t *Tracker) UndoTag(m history.Matcher, steps int) (bool, error) {
	var moved bool
	err := t.navigate(func(tl *history.Timeline) error {
		var err error
		moved, err = tl.UndoTag(t.obj, m, steps)
		return err
	})
	return moved, err
}

// RedoTag jumps forward to a matching tag. See history.Timeline.RedoTag.
func (t *Tracker) RedoTag(m history.Matcher, steps int) (bool, error) {
	var moved bool
	err := t.navigate(func(tl *history.Timeline) error {
		var err error
		moved, err = tl.RedoTag(t.obj, m, steps)
		return err
	})
	return moved, err
}

// Position returns the current sequence number, or -1 after Disable.
func (t *Tracker) Position() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabled {
		return -1
	}
	return t.timeline.Position()
}
