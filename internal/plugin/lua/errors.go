package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrInstructionLimit is returned when a script makes more host calls
	// than its instruction limit allows.
	ErrInstructionLimit = errors.New("lua instruction limit exceeded")

	// ErrUnconvertible is returned for Lua values that have no history
	// value equivalent, such as functions.
	ErrUnconvertible = errors.New("lua value cannot be converted")
)
