package tracking

import (
	"bytes"
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/dshills/rewind/internal/engine/canvas"
	"github.com/dshills/rewind/internal/engine/history"
)

func newTestTracker(t *testing.T, opts ...Option) (*Tracker, *canvas.Context) {
	t.Helper()
	ctx, err := canvas.New(8, 8)
	if err != nil {
		t.Fatalf("canvas.New() error = %v", err)
	}
	tr, err := Enable(ctx, opts...)
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	return tr, ctx
}

func pixels(c *canvas.Context) []byte {
	return slices.Clone(c.Image().Pix)
}

// counter is a tracked object whose state is a single integer.
type counter struct {
	n      int64
	sealed []history.OperationID
}

func (c *counter) Snapshot() (history.State, error) {
	return history.State{Params: map[string]history.Value{"n": c.n}}, nil
}

func (c *counter) Restore(s history.State) error {
	c.n, _ = s.Params["n"].(int64)
	return nil
}

func (c *counter) Apply(cmd history.Command) error {
	switch cmd.Op {
	case "inc":
		c.n++
	case "reset":
		c.n = 0
	default:
		return errors.New("bad op")
	}
	return nil
}

func (c *counter) Operations() []history.OperationID {
	return []history.OperationID{"inc", "reset", "peek"}
}

func (c *counter) Sealed() []history.OperationID { return c.sealed }

func TestEnablePrecondition(t *testing.T) {
	tests := []struct {
		name string
		obj  any
	}{
		{"nil", nil},
		{"string", "canvas"},
		{"target without operations", struct{ history.Target }{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Enable(tt.obj)
			if !errors.Is(err, history.ErrPrecondition) {
				t.Errorf("Enable() error = %v, want ErrPrecondition", err)
			}
			if tr != nil {
				t.Error("Enable() returned a tracker on failure")
			}
		})
	}
}

func TestModes(t *testing.T) {
	tr, _ := newTestTracker(t)

	tests := []struct {
		op   history.OperationID
		want Mode
	}{
		{"fillRect", Commit},
		{"stroke", Commit},
		{"putImageData", Commit},
		{"moveTo", Buffer},
		{"beginPath", Buffer},
		{history.SetOperation("fillStyle"), Buffer},
		{"getImageData", Ignore},
		{"measureText", Ignore},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got, ok := tr.Mode(tt.op)
			if !ok {
				t.Fatalf("Mode(%s) not tracked", tt.op)
			}
			if got != tt.want {
				t.Errorf("Mode(%s) = %v, want %v", tt.op, got, tt.want)
			}
		})
	}

	if _, ok := tr.Mode("fillText"); ok {
		t.Error("fillText tracked although the object does not support it")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Buffer, Commit, Ignore} {
		got, ok := ParseMode(m.String())
		if !ok || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, ok)
		}
	}
	if _, ok := ParseMode("later"); ok {
		t.Error("ParseMode accepted an unknown name")
	}
}

func TestInvokeRecordsAndCommits(t *testing.T) {
	tr, _ := newTestTracker(t)
	tl := tr.Timeline()

	if err := tr.Set("fillStyle", "#ff0000"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := tr.Invoke("moveTo", 1, 1); err != nil {
		t.Fatalf("Invoke(moveTo) error = %v", err)
	}
	if len(tl.Pending()) != 2 || tl.Position() != 0 {
		t.Fatalf("buffered ops: pending=%d position=%d, want 2 and 0", len(tl.Pending()), tl.Position())
	}

	if _, err := tr.Invoke("fillRect", 0, 0, 2, 2); err != nil {
		t.Fatalf("Invoke(fillRect) error = %v", err)
	}
	if tl.Position() != 1 || len(tl.Pending()) != 0 {
		t.Errorf("after commit: position=%d pending=%d, want 1 and 0", tl.Position(), len(tl.Pending()))
	}
	tx, _ := tl.Transaction(1)
	if len(tx.Commands) != 3 {
		t.Errorf("transaction has %d commands, want 3", len(tx.Commands))
	}
}

func TestInvokeQuery(t *testing.T) {
	tr, _ := newTestTracker(t)

	width, err := tr.Invoke("measureText", "ab")
	if err != nil {
		t.Fatalf("Invoke(measureText) error = %v", err)
	}
	if width.(float64) <= 0 {
		t.Errorf("measureText = %v, want positive", width)
	}
	if tl := tr.Timeline(); len(tl.Pending()) != 0 || tl.Len() != 1 {
		t.Error("query was recorded")
	}
}

func TestInvokeUnsupported(t *testing.T) {
	tr, _ := newTestTracker(t)
	if _, err := tr.Invoke("launch"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Invoke(launch) error = %v, want ErrUnsupported", err)
	}
}

func TestInvokeFailureRecordsNothing(t *testing.T) {
	tr, _ := newTestTracker(t)
	if _, err := tr.Invoke("fillRect", "x"); !errors.Is(err, canvas.ErrInvalidArgument) {
		t.Fatalf("Invoke() error = %v, want ErrInvalidArgument", err)
	}
	tl := tr.Timeline()
	if len(tl.Pending()) != 0 || tl.Newest() != 0 {
		t.Error("failed operation was recorded")
	}
}

func TestNotQueryable(t *testing.T) {
	tr, err := Enable(&counter{}, WithTable(Table{"peek": Ignore}))
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if _, err := tr.Invoke("peek"); !errors.Is(err, ErrNotQueryable) {
		t.Errorf("Invoke(peek) error = %v, want ErrNotQueryable", err)
	}
}

func TestSealedOperations(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	obj := &counter{sealed: []history.OperationID{"reset"}}

	tr, err := Enable(obj, WithLogger(logger), WithTable(Table{"inc": Commit, "reset": Commit}))
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if !strings.Contains(logs.String(), "operation left untracked") || !strings.Contains(logs.String(), "op=reset") {
		t.Errorf("missing immutable-field warning, log = %q", logs.String())
	}
	if _, ok := tr.Mode("reset"); ok {
		t.Error("sealed operation reported as tracked")
	}

	_, _ = tr.Invoke("inc")
	_, _ = tr.Invoke("inc")
	if _, err := tr.Invoke("reset"); err != nil {
		t.Fatalf("Invoke(reset) error = %v", err)
	}
	if obj.n != 0 {
		t.Errorf("n = %d, want 0 after sealed reset", obj.n)
	}
	if tr.Timeline().Newest() != 2 {
		t.Errorf("Newest() = %d, want 2: sealed operation must not be recorded", tr.Timeline().Newest())
	}
}

func TestUndoRedoThroughTracker(t *testing.T) {
	tr, ctx := newTestTracker(t)
	blank := pixels(ctx)

	_ = tr.Set("fillStyle", "red")
	_, _ = tr.Invoke("fillRect", 0, 0, 4, 4)
	red := pixels(ctx)
	_ = tr.Set("fillStyle", "blue")
	_, _ = tr.Invoke("fillRect", 2, 2, 4, 4)
	both := pixels(ctx)

	if err := tr.Undo(1); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if !bytes.Equal(pixels(ctx), red) {
		t.Error("Undo(1) did not restore the first rectangle")
	}
	if err := tr.Undo(1); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if !bytes.Equal(pixels(ctx), blank) {
		t.Error("Undo(1) did not restore the blank canvas")
	}
	if err := tr.Redo(2); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if !bytes.Equal(pixels(ctx), both) {
		t.Error("Redo(2) did not restore both rectangles")
	}
	if got := ctx.Style().FillStyle; got != "blue" {
		t.Errorf("FillStyle = %q after redo, want blue", got)
	}
}

func TestCheckpointAfterCommittingMutation(t *testing.T) {
	tr, ctx := newTestTracker(t, WithTimelineOptions(history.WithCheckpointThreshold(1)))

	_, _ = tr.Invoke("fillRect", 0, 0, 1, 1)
	_, _ = tr.Invoke("fillRect", 1, 1, 1, 1)
	want := pixels(ctx)
	_, _ = tr.Invoke("fillRect", 2, 2, 1, 1)

	if err := tr.Seek(2); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if !bytes.Equal(pixels(ctx), want) {
		t.Error("state at 2 differs: checkpoint captured the wrong state")
	}
}

func TestGroup(t *testing.T) {
	tr, _ := newTestTracker(t)
	err := tr.Group(func() error {
		_, _ = tr.Invoke("fillRect", 0, 0, 1, 1)
		return tr.Group(func() error {
			_, err := tr.Invoke("strokeRect", 0, 0, 2, 2)
			return err
		})
	})
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	tl := tr.Timeline()
	if tl.Newest() != 1 {
		t.Fatalf("Newest() = %d, want 1", tl.Newest())
	}
	tx, _ := tl.Transaction(1)
	if len(tx.Commands) != 2 {
		t.Errorf("grouped transaction has %d commands, want 2", len(tx.Commands))
	}

	_, _ = tr.Invoke("fillRect", 0, 0, 1, 1)
	if tl.Newest() != 2 {
		t.Errorf("immediate commit suppressed after the group: Newest() = %d", tl.Newest())
	}
}

func TestOnMutation(t *testing.T) {
	obj := &counter{}
	tr, err := Enable(obj)
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	obj.n++
	if err := tr.OnMutation("inc", nil, false); err != nil {
		t.Fatalf("OnMutation() error = %v", err)
	}
	obj.n++
	if err := tr.OnMutation("inc", nil, true); err != nil {
		t.Fatalf("OnMutation() error = %v", err)
	}
	if tr.Position() != 1 {
		t.Fatalf("Position() = %d, want 1", tr.Position())
	}
	if err := tr.Undo(1); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if obj.n != 0 {
		t.Errorf("n = %d after undo, want 0", obj.n)
	}
	if err := tr.Redo(1); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if obj.n != 2 {
		t.Errorf("n = %d after redo, want 2", obj.n)
	}
}

func TestTags(t *testing.T) {
	tr, _ := newTestTracker(t)
	_, _ = tr.Invoke("fillRect", 0, 0, 1, 1)
	_ = tr.PutTag("draft-1")
	_, _ = tr.Invoke("fillRect", 1, 1, 1, 1)
	_ = tr.PutTag("draft-2")
	_, _ = tr.Invoke("fillRect", 2, 2, 1, 1)

	moved, err := tr.UndoTag(history.MatchPattern(regexp.MustCompile(`^draft`)), 2)
	if err != nil || !moved {
		t.Fatalf("UndoTag() = %v, %v", moved, err)
	}
	if tr.Position() != 1 {
		t.Errorf("Position() = %d, want 1", tr.Position())
	}
	moved, err = tr.RedoTag(history.MatchName("draft-2"), 1)
	if err != nil || !moved {
		t.Fatalf("RedoTag() = %v, %v", moved, err)
	}
	if tr.Position() != 2 {
		t.Errorf("Position() = %d, want 2", tr.Position())
	}
}

func TestDisable(t *testing.T) {
	tr, ctx := newTestTracker(t)
	_, _ = tr.Invoke("fillRect", 0, 0, 2, 2)
	before := pixels(ctx)

	tr.Disable()
	tr.Disable()

	if tr.Enabled() || tr.Timeline() != nil || tr.Position() != -1 {
		t.Error("tracker still active after Disable")
	}
	if !bytes.Equal(pixels(ctx), before) {
		t.Error("Disable changed the object")
	}

	checks := map[string]error{
		"Invoke": func() error { _, err := tr.Invoke("fillRect", 0, 0, 1, 1); return err }(),
		"Undo":   tr.Undo(1),
		"Group":  tr.Group(func() error { return nil }),
		"Mutate": tr.OnMutation("fillRect", nil, true),
		"Tag":    tr.PutTag("x"),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrDisabled) {
			t.Errorf("%s after Disable error = %v, want ErrDisabled", name, err)
		}
	}
}

func TestResume(t *testing.T) {
	tr, ctx := newTestTracker(t)
	_, _ = tr.Invoke("fillRect", 0, 0, 2, 2)
	_, _ = tr.Invoke("fillRect", 4, 4, 2, 2)
	want := pixels(ctx)

	data, err := tr.Timeline().Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	tl, err := history.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	fresh, _ := canvas.New(8, 8)
	if err := tl.Rebuild(fresh); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	resumed, err := Resume(fresh, tl)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if !bytes.Equal(pixels(fresh), want) {
		t.Error("rebuilt canvas differs")
	}
	if err := resumed.Undo(1); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if resumed.Position() != 1 {
		t.Errorf("Position() = %d, want 1", resumed.Position())
	}

	if _, err := Resume(fresh, nil); !errors.Is(err, history.ErrPrecondition) {
		t.Errorf("Resume(nil timeline) error = %v, want ErrPrecondition", err)
	}
}
