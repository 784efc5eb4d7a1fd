// Package tracking connects a mutable object to a history timeline.
//
// A Tracker sits between callers and the tracked object. Every operation
// goes through Invoke, which looks the operation up in a static Table and
// either passes it straight through, or performs it and records it in the
// timeline, committing immediately when the table says so.
//
// # Classification
//
// Each operation is classified once, when tracking is enabled:
//
//   - [Ignore]: read-only queries. Never recorded.
//   - [Buffer]: state changes that accumulate in the pending buffer, such as
//     style assignments and path construction.
//   - [Commit]: operations that finish a visible change. Recorded, then the
//     pending buffer is committed as one transaction.
//
// Operations missing from the table are buffered.
//
// # Usage
//
//	ctx, _ := canvas.New(640, 480)
//	tr, err := tracking.Enable(ctx)
//	if err != nil {
//	    return err
//	}
//
//	tr.Set("fillStyle", "#ff0000")
//	tr.Invoke("fillRect", 10, 10, 100, 100)
//
//	tr.Undo(1)
//
// # Sealed Operations
//
// An object may report operations that cannot be intercepted. They keep
// working through Invoke but are never recorded, and Enable logs a
// warning wrapping [history.ErrImmutableField] for each.
//
// # Grouping
//
// Group suppresses immediate commits so that several committing
// operations land in one transaction:
//
//	tr.Group(func() error {
//	    tr.Invoke("fillRect", 0, 0, 10, 10)
//	    tr.Invoke("strokeRect", 0, 0, 10, 10)
//	    return nil
//	})
package tracking
