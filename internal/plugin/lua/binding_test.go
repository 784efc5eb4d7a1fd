package lua

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/rewind/internal/engine/canvas"
	"github.com/dshills/rewind/internal/engine/history"
	"github.com/dshills/rewind/internal/engine/tracking"
)

type scriptEnv struct {
	state   *State
	tracker *tracking.Tracker
	canvas  *canvas.Context
	out     *bytes.Buffer
}

func newScriptEnv(t *testing.T) *scriptEnv {
	t.Helper()
	c, err := canvas.New(16, 16)
	if err != nil {
		t.Fatalf("canvas.New() error = %v", err)
	}
	tr, err := tracking.Enable(c)
	if err != nil {
		t.Fatalf("tracking.Enable() error = %v", err)
	}
	out := &bytes.Buffer{}
	s := newTestState(t, WithOutput(out))
	if err := BindTracker(s, tr); err != nil {
		t.Fatalf("BindTracker() error = %v", err)
	}
	return &scriptEnv{state: s, tracker: tr, canvas: c, out: out}
}

func (e *scriptEnv) run(t *testing.T, code string) {
	t.Helper()
	if err := e.state.DoString(context.Background(), code); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
}

func TestScriptRecordsOperations(t *testing.T) {
	env := newScriptEnv(t)
	env.run(t, `
		ctx.fillStyle = "#ff0000"
		ctx:fillRect(0, 0, 4, 4)
		ctx.lineWidth = 2
		ctx:beginPath()
		ctx:moveTo(1, 1)
		ctx:lineTo(8, 8)
		ctx:stroke()
	`)

	tl := env.tracker.Timeline()
	if tl.Position() != 2 {
		t.Fatalf("Position() = %d, want 2", tl.Position())
	}
	tx, _ := tl.Transaction(1)
	if got := tx.Commands[0].Op; got != history.SetOperation("fillStyle") {
		t.Errorf("first command = %s, want set:fillStyle", got)
	}
	tx, _ = tl.Transaction(2)
	if len(tx.Commands) != 5 {
		t.Errorf("second transaction has %d commands, want 5", len(tx.Commands))
	}
	if env.canvas.Style().LineWidth != 2 {
		t.Errorf("LineWidth = %v, want 2", env.canvas.Style().LineWidth)
	}
}

func TestScriptReadsFieldsAndQueries(t *testing.T) {
	env := newScriptEnv(t)
	env.run(t, `
		ctx.fillStyle = "blue"
		print(ctx.fillStyle, ctx.lineWidth)
		ctx.font = "10px mono"
		print(ctx:measureText("abcd"))
		ctx:fillRect(0, 0, 1, 1)
		local px = ctx:getImageData(0, 0, 1, 1)
		print(#px, px[3], px[4])
	`)

	want := "blue\t1\n24\n4\t255\t255\n"
	if got := env.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if tl := env.tracker.Timeline(); tl.Newest() != 1 {
		t.Errorf("Newest() = %d: queries must not be recorded", tl.Newest())
	}
}

func TestScriptNavigation(t *testing.T) {
	env := newScriptEnv(t)
	env.run(t, `
		ctx.fillStyle = "red"
		ctx:fillRect(0, 0, 2, 2)
		history.tag("red")
		ctx.fillStyle = "blue"
		ctx:fillRect(2, 2, 2, 2)
		history.tag("blue")
		ctx:fillRect(4, 4, 2, 2)

		print(history.position(), history.oldest(), history.newest())
		print(history.undo_tag("red"))
		print(history.position(), ctx.fillStyle)
		print(history.redo_tag("re:^bl"))
		print(history.position())
		print(history.undo_tag("missing"))
		history.undo()
		print(history.position())
		history.redo(5)
		print(history.position())
		history.seek(0)
		print(history.position(), ctx.fillStyle)
	`)

	want := strings.Join([]string{
		"3\t0\t3",
		"true",
		"1\tred",
		"true",
		"2",
		"false",
		"1",
		"3",
		"0\t#000000",
	}, "\n") + "\n"
	if got := env.out.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestScriptSeekCurrentKeepsPendingStyle(t *testing.T) {
	env := newScriptEnv(t)
	env.run(t, `
		ctx:fillRect(0, 0, 2, 2)
		ctx.fillStyle = "blue"
		history.seek(history.position())
		print(history.position(), history.newest(), ctx.fillStyle)
		print(history.redo_tag())
		print(history.position(), ctx.fillStyle)
	`)

	want := "1\t1\tblue\nfalse\n1\tblue\n"
	if got := env.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if n := len(env.tracker.Timeline().Pending()); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
}

func TestScriptUndoRestoresPixels(t *testing.T) {
	env := newScriptEnv(t)
	blank := slices.Clone(env.canvas.Image().Pix)

	env.run(t, `
		ctx:fillRect(0, 0, 16, 16)
		ctx:clearRect(4, 4, 4, 4)
		history.undo(2)
	`)
	if !bytes.Equal(env.canvas.Image().Pix, blank) {
		t.Error("undo(2) did not restore the blank canvas")
	}
}

func TestScriptPutImageData(t *testing.T) {
	env := newScriptEnv(t)
	env.run(t, `ctx:putImageData(0, 0, 1, 1, {10, 20, 30, 255})`)

	if got := env.canvas.Image().Pix[:4]; !bytes.Equal(got, []byte{10, 20, 30, 255}) {
		t.Errorf("pixel = %v", got)
	}
	tx, _ := env.tracker.Timeline().Transaction(1)
	if tx.Cost != history.HighCost {
		t.Errorf("putImageData cost = %d, want %d", tx.Cost, history.HighCost)
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"unknown method", `ctx:explode()`, "unsupported operation"},
		{"bad argument", `ctx:fillRect("a")`, "invalid argument"},
		{"unknown field", `ctx.color = "red"`, "unsupported operation"},
		{"function argument", `ctx:fillRect(function() end, 0, 1, 1)`, "cannot be converted"},
		{"bad pattern", `history.undo_tag("re:(")`, "tag pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newScriptEnv(t)
			err := env.state.DoString(context.Background(), tt.code)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("DoString() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestBindTrackerNil(t *testing.T) {
	s := newTestState(t)
	if err := BindTracker(s, nil); err == nil {
		t.Error("BindTracker(nil) succeeded")
	}
}

func TestContextToString(t *testing.T) {
	env := newScriptEnv(t)
	env.run(t, `print(tostring(ctx))`)
	if got := strings.TrimSpace(env.out.String()); got != contextTypeName {
		t.Errorf("tostring(ctx) = %q", got)
	}
	if v := env.state.GetGlobal(ContextGlobal); v.Type() != glua.LTUserData {
		t.Errorf("ctx is %s, want userdata", v.Type())
	}
}

func TestParseMatcher(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"", "anything", true},
		{"final", "final", true},
		{"final", "final-2", false},
		{"re:^v[0-9]+$", "v12", true},
		{"re:^v[0-9]+$", "version", false},
	}

	for _, tt := range tests {
		m, err := ParseMatcher(tt.pattern)
		if err != nil {
			t.Fatalf("ParseMatcher(%q) error = %v", tt.pattern, err)
		}
		if got := m.Match(tt.name); got != tt.want {
			t.Errorf("ParseMatcher(%q).Match(%q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}
