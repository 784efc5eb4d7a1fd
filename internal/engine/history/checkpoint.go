package history

import "fmt"

// State is a complete, reconstructible image of the target object.
// Blob is opaque to the timeline and treated as an immutable value.
type State struct {
	Blob   []byte
	Params map[string]Value
}

// Target is the object whose mutations are recorded.
//
// Snapshot and Restore must be inverses. Restore must not retain or modify
// the blob it is given. Apply performs one recorded command.
type Target interface {
	Snapshot() (State, error)
	Restore(State) error
	Apply(Command) error
}

// Checkpoint is a full reconstruction point anchored to the transaction
// whose application it captures.
type Checkpoint struct {
	State  State
	Anchor int
}

// takeCheckpoint snapshots the target as of transaction anchor.
func takeCheckpoint(target Target, anchor int) (*Checkpoint, error) {
	state, err := target.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshot, err)
	}
	return &Checkpoint{State: state, Anchor: anchor}, nil
}

// apply restores the target to the checkpoint state.
func (cp *Checkpoint) apply(target Target) error {
	if err := target.Restore(cp.State); err != nil {
		return fmt.Errorf("%w: checkpoint %d: %w", ErrRestore, cp.Anchor, err)
	}
	return nil
}
