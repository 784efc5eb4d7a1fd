package lua

import (
	"fmt"
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/rewind/internal/engine/history"
)

// Bridge converts between Lua values and history values.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToValue converts a Lua value. Integral numbers become int64, tables with
// keys 1..n become []history.Value and other tables become
// map[string]history.Value. Functions, userdata, threads and cyclic tables
// cannot be converted.
func (b *Bridge) ToValue(lv lua.LValue) (history.Value, error) {
	return b.toValue(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toValue(lv lua.LValue, visiting map[*lua.LTable]bool) (history.Value, error) {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		if visiting[v] {
			return nil, fmt.Errorf("%w: cyclic table", ErrUnconvertible)
		}
		visiting[v] = true
		defer delete(visiting, v)
		return b.tableToValue(v, visiting)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnconvertible, lv.Type())
	}
}

func (b *Bridge) tableToValue(t *lua.LTable, visiting map[*lua.LTable]bool) (history.Value, error) {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if count == n && n > 0 {
		arr := make([]history.Value, n)
		for i := 1; i <= n; i++ {
			v, err := b.toValue(t.RawGetInt(i), visiting)
			if err != nil {
				return nil, err
			}
			arr[i-1] = v
		}
		return arr, nil
	}

	m := make(map[string]history.Value, count)
	var err error
	t.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		var val history.Value
		val, err = b.toValue(v, visiting)
		m[k.String()] = val
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ToBytes converts a Lua string or an array of numbers in 0..255 to bytes.
func (b *Bridge) ToBytes(lv lua.LValue) ([]byte, error) {
	switch v := lv.(type) {
	case lua.LString:
		return []byte(string(v)), nil
	case *lua.LTable:
		n := v.Len()
		out := make([]byte, n)
		for i := 1; i <= n; i++ {
			num, ok := v.RawGetInt(i).(lua.LNumber)
			if !ok || num < 0 || num > 255 || float64(num) != math.Trunc(float64(num)) {
				return nil, fmt.Errorf("%w: byte %d is %s", ErrUnconvertible, i, v.RawGetInt(i).String())
			}
			out[i-1] = byte(num)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s is not byte data", ErrUnconvertible, lv.Type())
	}
}

// FromValue converts a history value to Lua. Byte slices become arrays
// of numbers.
func (b *Bridge) FromValue(v history.Value) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		t := b.L.CreateTable(len(val), 0)
		for i, c := range val {
			t.RawSetInt(i+1, lua.LNumber(c))
		}
		return t
	case []history.Value:
		t := b.L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, b.FromValue(item))
		}
		return t
	case map[string]history.Value:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t := b.L.CreateTable(0, len(val))
		for _, k := range keys {
			t.RawSetString(k, b.FromValue(val[k]))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}
