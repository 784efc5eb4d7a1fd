// Package lua runs drawing scripts against a tracked canvas.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management
//   - Lua to history value conversion
//   - A ctx object whose calls and assignments are recorded
//   - A history table for navigating the timeline
//
// # State
//
// The State type manages a Lua runtime with sandboxing:
//
//	state, err := lua.NewState(
//	    lua.WithExecutionTimeout(5 * time.Second),
//	    lua.WithInstructionLimit(100_000),
//	)
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
// # Scripts
//
// After BindTracker, scripts draw through ctx and navigate through
// history:
//
//	ctx.fillStyle = "#ff0000"
//	ctx:fillRect(10, 10, 50, 50)
//	history.tag("red")
//
//	ctx.fillStyle = "blue"
//	ctx:fillRect(20, 20, 50, 50)
//
//	history.undo_tag("red")     -- exact name
//	history.redo_tag("re:^b")   -- regular expression
//	history.undo(2)
//	print(history.position())
//
// # Sandbox
//
// The Sandbox removes functions that load code (dofile, loadfile, load,
// require) and never opens io, os, debug or package. Calls into host
// functions are counted against the instruction limit; the execution
// timeout stops everything else.
package lua
