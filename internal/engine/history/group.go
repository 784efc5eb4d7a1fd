package history

// Group runs fn and commits everything recorded inside it as a single
// transaction. Commands pending before the call are committed first so the
// group stands on its own.
//
// If fn returns an error, the commands it recorded stay pending: they have
// already mutated the target, so dropping them would desynchronize replay.
func (t *Timeline) Group(target Target, fn func() error) error {
	if err := t.Commit(target); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return t.Commit(target)
}

// GroupScope provides a convenient way to group commands using defer.
// Usage:
//
//	func drawFrame(tl *history.Timeline, target history.Target) {
//	    scope := tl.GroupScope(target)
//	    defer scope.End()
//	    // ... record commands ...
//	}
type GroupScope struct {
	timeline *Timeline
	target   Target
	active   bool
	err      error
}

// GroupScope commits anything pending and opens a scope whose End commits
// the commands recorded since.
func (t *Timeline) GroupScope(target Target) *GroupScope {
	return &GroupScope{
		timeline: t,
		target:   target,
		active:   true,
		err:      t.Commit(target),
	}
}

// End commits the scope. Safe to call multiple times; only the first call
// has effect. It returns the first commit error seen by the scope.
func (g *GroupScope) End() error {
	if !g.active {
		return g.err
	}
	g.active = false
	if g.err != nil {
		return g.err
	}
	g.err = g.timeline.Commit(g.target)
	return g.err
}
