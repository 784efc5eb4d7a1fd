package lua

import (
	"fmt"
	"regexp"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/rewind/internal/engine/history"
	"github.com/dshills/rewind/internal/engine/tracking"
)

const (
	// ContextGlobal is the global name of the tracked object.
	ContextGlobal = "ctx"

	// HistoryModule is the global name of the navigation table.
	HistoryModule = "history"

	// patternPrefix marks a tag pattern as a regular expression.
	patternPrefix = "re:"

	contextTypeName = "rewind.ctx"
)

// Paramer is implemented by objects whose fields can be read from Lua.
type Paramer interface {
	Param(name string) (history.Value, bool)
}

// byteArgs lists operations with an argument that must reach the object
// as []byte, by argument index.
var byteArgs = map[history.OperationID]int{
	"putImageData": 4,
}

// BindTracker exposes the tracker's object as the global ctx and its
// timeline as the global history table.
//
// Method calls on ctx go through Tracker.Invoke and field assignments
// through Tracker.Set, so they are recorded. Field reads are answered by
// the object when it implements Paramer.
func BindTracker(s *State, tr *tracking.Tracker) error {
	if tr == nil {
		return fmt.Errorf("%w: nil tracker", history.ErrPrecondition)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStateClosed
	}
	b := &binding{state: s, tracker: tr, bridge: NewBridge(s.L)}
	s.L.SetGlobal(ContextGlobal, b.newContext(s.L))
	s.mu.Unlock()

	s.RegisterModule(HistoryModule, map[string]lua.LGFunction{
		"undo":     b.undo,
		"redo":     b.redo,
		"seek":     b.seek,
		"commit":   b.commit,
		"tag":      b.tag,
		"undo_tag": b.undoTag,
		"redo_tag": b.redoTag,
		"position": b.position,
		"oldest":   b.oldest,
		"newest":   b.newest,
	})
	return nil
}

type binding struct {
	state   *State
	tracker *tracking.Tracker
	bridge  *Bridge
}

func (b *binding) newContext(L *lua.LState) *lua.LUserData {
	mt := L.NewTypeMetatable(contextTypeName)
	L.SetField(mt, "__index", L.NewFunction(b.index))
	L.SetField(mt, "__newindex", L.NewFunction(b.state.sandbox.Meter(b.newIndex)))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(contextTypeName))
		return 1
	}))

	ud := L.NewUserData()
	ud.Value = b.tracker.Object()
	L.SetMetatable(ud, mt)
	return ud
}

// index answers ctx.name: a field value when the object has one,
// otherwise a method.
func (b *binding) index(L *lua.LState) int {
	name := L.CheckString(2)
	if p, ok := b.tracker.Object().(Paramer); ok {
		if v, ok := p.Param(name); ok {
			L.Push(b.bridge.FromValue(v))
			return 1
		}
	}
	L.Push(L.NewFunction(b.state.sandbox.Meter(b.method(history.OperationID(name)))))
	return 1
}

func (b *binding) method(op history.OperationID) lua.LGFunction {
	return func(L *lua.LState) int {
		first := 1
		if ud, ok := L.Get(1).(*lua.LUserData); ok && ud.Value == b.tracker.Object() {
			first = 2
		}

		var args []history.Value
		for i := first; i <= L.GetTop(); i++ {
			lv := L.Get(i)
			var (
				v   history.Value
				err error
			)
			if idx, ok := byteArgs[op]; ok && i-first == idx {
				v, err = b.bridge.ToBytes(lv)
			} else {
				v, err = b.bridge.ToValue(lv)
			}
			if err != nil {
				L.RaiseError("%s argument %d: %v", op, i-first+1, err)
				return 0
			}
			args = append(args, v)
		}

		result, err := b.tracker.Invoke(op, args...)
		if err != nil {
			L.RaiseError("%s: %v", op, err)
			return 0
		}
		if result == nil {
			return 0
		}
		L.Push(b.bridge.FromValue(result))
		return 1
	}
}

func (b *binding) newIndex(L *lua.LState) int {
	name := L.CheckString(2)
	v, err := b.bridge.ToValue(L.Get(3))
	if err != nil {
		L.RaiseError("%s: %v", name, err)
		return 0
	}
	if err := b.tracker.Set(name, v); err != nil {
		L.RaiseError("%s: %v", name, err)
	}
	return 0
}

// raise converts a Go error into a Lua error.
func raise(L *lua.LState, op string, err error) int {
	L.RaiseError("history.%s: %v", op, err)
	return 0
}

func (b *binding) undo(L *lua.LState) int {
	if err := b.tracker.Undo(L.OptInt(1, 1)); err != nil {
		return raise(L, "undo", err)
	}
	return 0
}

func (b *binding) redo(L *lua.LState) int {
	if err := b.tracker.Redo(L.OptInt(1, 1)); err != nil {
		return raise(L, "redo", err)
	}
	return 0
}

func (b *binding) seek(L *lua.LState) int {
	if err := b.tracker.Seek(L.CheckInt(1)); err != nil {
		return raise(L, "seek", err)
	}
	return 0
}

func (b *binding) commit(L *lua.LState) int {
	if err := b.tracker.Commit(); err != nil {
		return raise(L, "commit", err)
	}
	return 0
}

func (b *binding) tag(L *lua.LState) int {
	if err := b.tracker.PutTag(L.CheckString(1)); err != nil {
		return raise(L, "tag", err)
	}
	return 0
}

func (b *binding) undoTag(L *lua.LState) int {
	m, err := ParseMatcher(L.OptString(1, ""))
	if err != nil {
		return raise(L, "undo_tag", err)
	}
	moved, err := b.tracker.UndoTag(m, L.OptInt(2, 1))
	if err != nil {
		return raise(L, "undo_tag", err)
	}
	L.Push(lua.LBool(moved))
	return 1
}

func (b *binding) redoTag(L *lua.LState) int {
	m, err := ParseMatcher(L.OptString(1, ""))
	if err != nil {
		return raise(L, "redo_tag", err)
	}
	moved, err := b.tracker.RedoTag(m, L.OptInt(2, 1))
	if err != nil {
		return raise(L, "redo_tag", err)
	}
	L.Push(lua.LBool(moved))
	return 1
}

func (b *binding) position(L *lua.LState) int {
	L.Push(lua.LNumber(b.tracker.Position()))
	return 1
}

func (b *binding) oldest(L *lua.LState) int {
	tl := b.tracker.Timeline()
	if tl == nil {
		return raise(L, "oldest", tracking.ErrDisabled)
	}
	L.Push(lua.LNumber(tl.Oldest()))
	return 1
}

func (b *binding) newest(L *lua.LState) int {
	tl := b.tracker.Timeline()
	if tl == nil {
		return raise(L, "newest", tracking.ErrDisabled)
	}
	L.Push(lua.LNumber(tl.Newest()))
	return 1
}

// ParseMatcher turns a tag pattern into a matcher. An empty pattern
// matches every tag, a pattern starting with "re:" is a regular
// expression and anything else matches a tag name exactly.
func ParseMatcher(pattern string) (history.Matcher, error) {
	if pattern == "" {
		return history.MatchAll(), nil
	}
	if expr, ok := strings.CutPrefix(pattern, patternPrefix); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("tag pattern: %w", err)
		}
		return history.MatchPattern(re), nil
	}
	return history.MatchName(pattern), nil
}
