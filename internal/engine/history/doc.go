// Package history provides timeline navigation for a mutable target object.
//
// The history system records mutations as replayable commands instead of
// inverting them. Navigation reconstructs an arbitrary past or future state
// by restoring the nearest full snapshot and replaying forward. Key concepts:
//
// # Commands and Transactions
//
// A Command is one recorded operation: an operation identifier, its
// arguments and a cost. Commands accumulate in a pending buffer until
// Commit turns them into a Transaction with the next sequence number.
// Transaction 0 is an empty sentinel created with the timeline.
//
// # Checkpoints
//
// Every time the cost committed since the last checkpoint exceeds the
// threshold, the timeline asks the target for a full snapshot. Replay
// distance is therefore bounded by one threshold's worth of cost:
//
//	tl, err := history.New(target, history.WithCheckpointThreshold(5000))
//
//	tl.Record("fillRect", 0, 0, 10, 10)
//	tl.Commit(target)
//
// # Navigation
//
// Undo always restores the checkpoint governing the destination and
// replays forward to it. Redo replays forward from the current position
// unless the destination lies past another checkpoint:
//
//	tl.Undo(target, 2)
//	tl.Redo(target, 1)
//	tl.Seek(target, 7)
//
// Recording a command after an undo discards the undone future. There is
// a single linear history; branches are never kept.
//
// # Tags
//
// Tags are named bookmarks on sequence numbers:
//
//	tl.PutTag("draft")
//	tl.UndoTag(target, history.MatchName("draft"), 1)
//
// # Persistence
//
// Encode writes the base snapshot, the transaction log and the tags as
// JSON. Decode rebuilds the chain; Rebuild brings a target up to the
// decoded position and recomputes checkpoints.
package history
