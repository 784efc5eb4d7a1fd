package history

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Timeline records mutations of a target and navigates between its states.
//
// The timeline owns every transaction, checkpoint and tag. The target is
// passed explicitly to each operation that needs it and is never retained.
// A single mutex guards the whole timeline; operations do not overlap.
type Timeline struct {
	mu sync.Mutex

	// transactions[i].No == transactions[0].No + i
	transactions []*Transaction

	// Sorted by anchor; checkpoints[0] anchors transactions[0].
	checkpoints []*Checkpoint

	// Sorted by sequence number, ties in insertion order.
	tags []Tag

	current int
	pending CommandBuffer
	cost    int

	// Set by Decode until a checkpoint has been applied to a target.
	detached bool

	// Configuration
	threshold int
	costs     CostTable
	observer  Observer
	logger    *slog.Logger
}

func newTimeline(opts []Option) *Timeline {
	t := &Timeline{
		threshold: DefaultCheckpointThreshold,
		costs:     DefaultCostTable(),
		observer:  nopObserver{},
		logger:    discardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// New creates a timeline for target. The sentinel transaction 0 and the
// base checkpoint are created from the target's current state.
func New(target Target, opts ...Option) (*Timeline, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target", ErrPrecondition)
	}

	t := newTimeline(opts)
	sentinel := newTransaction(0, nil)
	cp, err := takeCheckpoint(target, sentinel.No)
	if err != nil {
		return nil, &OperationError{Op: "init", No: 0, Err: err}
	}

	t.transactions = []*Transaction{sentinel}
	t.checkpoints = []*Checkpoint{cp}
	t.current = sentinel.No
	return t, nil
}

// Record appends a command to the pending buffer.
// Any history after the current position is discarded first.
func (t *Timeline) Record(op OperationID, args ...Value) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recordLocked(NewCommand(op, args, t.costs.Cost(op)))
}

// RecordCommand appends a prepared command, keeping its cost.
func (t *Timeline) RecordCommand(cmd Command) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recordLocked(NewCommand(cmd.Op, cmd.Args, cmd.Cost))
}

func (t *Timeline) recordLocked(cmd Command) {
	t.deleteFutureData()
	t.pending.Add(cmd)
}

// Commit turns the pending commands into a transaction.
// It is a no-op when nothing is pending. If the commit pushes the
// accumulated cost over the threshold, a checkpoint is taken; when the
// snapshot fails the timeline is left exactly as before the call.
func (t *Timeline) Commit(target Target) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commitLocked(target)
}

func (t *Timeline) commitLocked(target Target) error {
	if t.pending.IsEmpty() {
		return nil
	}

	tx := newTransaction(t.current+1, t.pending.Commands())
	cost := t.cost + tx.Cost

	var cp *Checkpoint
	if cost > t.threshold {
		if target == nil {
			return &OperationError{Op: "commit", No: tx.No, Err: fmt.Errorf("%w: nil target", ErrPrecondition)}
		}
		var err error
		cp, err = takeCheckpoint(target, tx.No)
		if err != nil {
			return &OperationError{Op: "commit", No: tx.No, Err: err}
		}
		cost = 0
	}

	t.pending.Reset()
	t.transactions = append(t.transactions, tx)
	t.current = tx.No
	t.cost = cost
	t.observer.OnCommit(tx)

	if cp != nil {
		t.checkpoints = append(t.checkpoints, cp)
		t.observer.OnCheckpoint(cp)
		t.logger.Debug("checkpoint taken", slog.Int("anchor", cp.Anchor), slog.Int("blob_bytes", len(cp.State.Blob)))
	}
	return nil
}

// Undo moves back by steps transactions, clamping at the oldest one.
// Pending commands are committed first. Steps below 1 are a no-op.
func (t *Timeline) Undo(target Target, steps int) error {
	if steps < 1 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.undoLocked(target, steps)
}

func (t *Timeline) undoLocked(target Target, steps int) error {
	if target == nil {
		return &OperationError{Op: "undo", No: t.current, Err: fmt.Errorf("%w: nil target", ErrPrecondition)}
	}
	if err := t.commitLocked(target); err != nil {
		return err
	}

	to := t.current - steps
	if oldest := t.oldest(); to < oldest {
		to = oldest
	}

	from := t.current
	replayed, err := t.resetTo(target, to)
	if err != nil {
		return t.recover(target, "undo", from, to, err)
	}
	t.observer.OnNavigate(from, to, replayed)
	return nil
}

// Redo moves forward by steps transactions, clamping at the newest one.
// Steps below 1 are a no-op.
func (t *Timeline) Redo(target Target, steps int) error {
	if steps < 1 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.redoLocked(target, steps)
}

func (t *Timeline) redoLocked(target Target, steps int) error {
	if target == nil {
		return &OperationError{Op: "redo", No: t.current, Err: fmt.Errorf("%w: nil target", ErrPrecondition)}
	}
	if err := t.commitLocked(target); err != nil {
		return err
	}

	to := t.current + steps
	if newest := t.newest(); to > newest {
		to = newest
	}
	if to == t.current {
		return nil
	}

	from := t.current
	start := t.current + 1
	cp := t.checkpointAt(to)
	if t.detached || cp != t.checkpointAt(t.current) {
		if err := t.applyCheckpoint(target, cp); err != nil {
			return t.recover(target, "redo", from, to, err)
		}
		start = cp.Anchor + 1
	}

	replayed, err := t.replay(target, start, to)
	if err != nil {
		return t.recover(target, "redo", from, to, err)
	}
	t.observer.OnNavigate(from, to, replayed)
	return nil
}

// Seek moves to the absolute sequence number no, dispatching to Undo or
// Redo. Out-of-range numbers clamp to the retained history. Seeking the
// current position is a no-op and leaves pending commands uncommitted.
func (t *Timeline) Seek(target Target, no int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seekLocked(target, no)
}

func (t *Timeline) seekLocked(target Target, no int) error {
	if no == t.current {
		return nil
	}
	if err := t.commitLocked(target); err != nil {
		return err
	}

	step := no - t.current
	switch {
	case step > 0:
		return t.redoLocked(target, step)
	case step < 0:
		return t.undoLocked(target, -step)
	}
	return nil
}

// resetTo restores the checkpoint governing no and replays up to it.
func (t *Timeline) resetTo(target Target, no int) (int, error) {
	cp := t.checkpointAt(no)
	if err := t.applyCheckpoint(target, cp); err != nil {
		return 0, err
	}
	return t.replay(target, cp.Anchor+1, no)
}

func (t *Timeline) applyCheckpoint(target Target, cp *Checkpoint) error {
	if err := cp.apply(target); err != nil {
		return err
	}
	t.current = cp.Anchor
	t.cost = 0
	t.detached = false
	return nil
}

// replay applies transactions from..to inclusive, in order.
func (t *Timeline) replay(target Target, from, to int) (int, error) {
	n := 0
	for no := from; no <= to; no++ {
		tx := t.transaction(no)
		if err := tx.apply(target); err != nil {
			return n, err
		}
		t.current = no
		t.cost += tx.Cost
		n++
	}
	return n, nil
}

// recover puts the target back to the position it held before a failed
// navigation and reports the original failure.
func (t *Timeline) recover(target Target, op string, from, to int, cause error) error {
	opErr := &OperationError{Op: op, No: to, Err: cause}
	if _, err := t.resetTo(target, from); err != nil {
		t.logger.Error("timeline recovery failed",
			slog.String("op", op),
			slog.Int("position", from),
			slog.Any("error", err))
		return errors.Join(opErr, err)
	}
	return opErr
}

// deleteFutureData discards every transaction, checkpoint and tag after
// the current position.
func (t *Timeline) deleteFutureData() {
	forward := t.newest() - t.current
	if forward <= 0 {
		return
	}

	keep := len(t.transactions) - forward
	clear(t.transactions[keep:])
	t.transactions = t.transactions[:keep]

	i := len(t.checkpoints) - 1
	for ; i >= 0; i-- {
		if t.checkpoints[i].Anchor <= t.current {
			break
		}
	}
	clear(t.checkpoints[i+1:])
	t.checkpoints = t.checkpoints[:i+1]

	j := len(t.tags) - 1
	for ; j >= 0; j-- {
		if t.tags[j].No <= t.current {
			break
		}
	}
	t.tags = t.tags[:j+1]

	t.recalcCost()
	t.observer.OnTruncate(forward)
}

// recalcCost sums the cost of transactions after the newest checkpoint.
func (t *Timeline) recalcCost() {
	last := t.checkpoints[len(t.checkpoints)-1]
	cost := 0
	for no := last.Anchor + 1; no <= t.newest(); no++ {
		cost += t.transaction(no).Cost
	}
	t.cost = cost
}

// checkpointAt returns the latest checkpoint anchored at or before no.
func (t *Timeline) checkpointAt(no int) *Checkpoint {
	i := sort.Search(len(t.checkpoints), func(i int) bool {
		return t.checkpoints[i].Anchor > no
	})
	if i == 0 {
		return t.checkpoints[0]
	}
	return t.checkpoints[i-1]
}

func (t *Timeline) transaction(no int) *Transaction {
	return t.transactions[no-t.oldest()]
}

func (t *Timeline) oldest() int {
	return t.transactions[0].No
}

func (t *Timeline) newest() int {
	return t.transactions[len(t.transactions)-1].No
}

// Position returns the sequence number of the current transaction.
func (t *Timeline) Position() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Oldest returns the sequence number of the oldest retained transaction.
func (t *Timeline) Oldest() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.oldest()
}

// Newest returns the sequence number of the newest transaction.
func (t *Timeline) Newest() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.newest()
}

// CanUndo returns true if there is committed or pending history to undo.
func (t *Timeline) CanUndo() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current > t.oldest() || !t.pending.IsEmpty()
}

// CanRedo returns true if the position is behind the newest transaction.
func (t *Timeline) CanRedo() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current < t.newest()
}

// Pending returns a copy of the uncommitted commands.
func (t *Timeline) Pending() []Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Commands()
}

// AccumulatedCost returns the cost replayed or committed since the
// governing checkpoint.
func (t *Timeline) AccumulatedCost() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cost
}

// CheckpointThreshold returns the configured threshold.
func (t *Timeline) CheckpointThreshold() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.threshold
}

// SetCheckpointThreshold changes the threshold for future commits.
// Non-positive values are ignored.
func (t *Timeline) SetCheckpointThreshold(threshold int) {
	if threshold <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threshold = threshold
}

// SetCostTable replaces the cost table used by Record.
func (t *Timeline) SetCostTable(costs CostTable) {
	if costs == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.costs = costs
}

// CheckpointAnchors returns the anchor sequence numbers of all checkpoints.
func (t *Timeline) CheckpointAnchors() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]int, len(t.checkpoints))
	for i, cp := range t.checkpoints {
		result[i] = cp.Anchor
	}
	return result
}

// Transaction returns the transaction numbered no.
// The returned transaction is owned by the timeline and must not be modified.
func (t *Timeline) Transaction(no int) (*Transaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if no < t.oldest() || no > t.newest() {
		return nil, false
	}
	return t.transaction(no), true
}

// Len returns the number of retained transactions, sentinel included.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.transactions)
}
