package history

import (
	"errors"
	"fmt"
)

// Errors returned by timeline operations.
var (
	// ErrPrecondition indicates the target is not in a usable state.
	// Nothing is mutated when it is returned.
	ErrPrecondition = errors.New("precondition failed")

	// ErrImmutableField indicates an operation that cannot be intercepted.
	// The operation is left untracked.
	ErrImmutableField = errors.New("operation is not interceptable")

	// ErrSnapshot indicates the target failed to produce a snapshot.
	ErrSnapshot = errors.New("snapshot failed")

	// ErrRestore indicates the target failed to restore a snapshot.
	ErrRestore = errors.New("restore failed")

	// ErrReplay indicates the target failed to apply a recorded command.
	ErrReplay = errors.New("replay failed")

	// ErrCorrupt indicates serialized timeline data is malformed.
	ErrCorrupt = errors.New("corrupt timeline data")
)

// OperationError describes a failed timeline operation.
type OperationError struct {
	Op  string // Operation name (e.g., "commit", "undo")
	No  int    // Sequence number the operation was aiming for
	Err error  // Underlying error
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s to %d: %v", e.Op, e.No, e.Err)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
