package lua

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts Lua execution to safe operations.
//
// gopher-lua has no per-instruction hook, so the limit counts calls into
// host functions wrapped with Meter. Runaway pure-Lua loops are stopped by
// the execution timeout instead.
type Sandbox struct {
	L *lua.LState

	instructionLimit int64
	instructionCount int64
	output           io.Writer
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState, instructionLimit int64, output io.Writer) *Sandbox {
	if output == nil {
		output = io.Discard
	}
	return &Sandbox{
		L:                L,
		instructionLimit: instructionLimit,
		output:           output,
	}
}

// Install removes functions that can load code and redirects print.
func (s *Sandbox) Install() {
	for _, name := range []string{
		"dofile",
		"loadfile",
		"load",
		"loadstring",
		"require",
		"module",
		"collectgarbage",
	} {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installSafePrint()
}

// installSafePrint replaces print with a version writing to the sandbox
// output.
func (s *Sandbox) installSafePrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, top)
		for i := 1; i <= top; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		fmt.Fprintln(s.output, strings.Join(parts, "\t"))
		return 0
	}))
}

// ResetInstructionCount resets the instruction counter.
func (s *Sandbox) ResetInstructionCount() {
	atomic.StoreInt64(&s.instructionCount, 0)
}

// InstructionCount returns the current instruction count.
func (s *Sandbox) InstructionCount() int64 {
	return atomic.LoadInt64(&s.instructionCount)
}

// IncrementInstructions adds to the instruction count and returns true if
// the limit is exceeded.
func (s *Sandbox) IncrementInstructions(n int64) bool {
	count := atomic.AddInt64(&s.instructionCount, n)
	return s.instructionLimit > 0 && count > s.instructionLimit
}

// Exceeded reports whether the limit was exceeded in this execution.
func (s *Sandbox) Exceeded() bool {
	return s.instructionLimit > 0 && s.InstructionCount() > s.instructionLimit
}

// Meter wraps fn so each call is charged one instruction.
func (s *Sandbox) Meter(fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if s.IncrementInstructions(1) {
			L.RaiseError("%s", ErrInstructionLimit.Error())
			return 0
		}
		return fn(L)
	}
}
