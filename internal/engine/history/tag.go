package history

import "regexp"

// Tag is a named bookmark on a sequence number.
type Tag struct {
	No   int
	Name string
}

// Matcher selects tags by name.
type Matcher interface {
	Match(name string) bool
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(name string) bool

// Match calls f(name).
func (f MatcherFunc) Match(name string) bool {
	return f(name)
}

// MatchName matches tags with exactly the given name.
func MatchName(name string) Matcher {
	return MatcherFunc(func(s string) bool { return s == name })
}

// MatchPattern matches tags whose name matches re.
func MatchPattern(re *regexp.Regexp) Matcher {
	return MatcherFunc(re.MatchString)
}

// MatchAll matches every tag.
func MatchAll() Matcher {
	return MatcherFunc(func(string) bool { return true })
}

// PutTag bookmarks the current position.
func (t *Timeline) PutTag(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tag := Tag{No: t.current, Name: name}
	for i := len(t.tags) - 1; i >= 0; i-- {
		if t.tags[i].No <= tag.No {
			t.tags = append(t.tags, Tag{})
			copy(t.tags[i+2:], t.tags[i+1:])
			t.tags[i+1] = tag
			return
		}
	}
	t.tags = append([]Tag{tag}, t.tags...)
}

// Tags returns a copy of all tags in sequence order.
func (t *Timeline) Tags() []Tag {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]Tag, len(t.tags))
	copy(result, t.tags)
	return result
}

// UndoTag jumps back to the steps-th matching tag before the current
// position, counting from the nearest. Tags exactly at the current position
// are not considered. Pending commands count as the next transaction and
// are committed only when a jump happens. It returns false, leaving the
// timeline untouched, when fewer than steps tags match. A nil matcher
// matches every tag.
func (t *Timeline) UndoTag(target Target, m Matcher, steps int) (bool, error) {
	if steps < 1 {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.settledPosition()
	matches := t.matchingTags(m, func(no int) bool { return no < pos })
	i := len(matches) - steps
	if i < 0 {
		return false, nil
	}
	if err := t.commitLocked(target); err != nil {
		return false, err
	}
	return true, t.seekLocked(target, matches[i].No)
}

// RedoTag jumps forward to the steps-th matching tag after the current
// position, counting from the nearest. See UndoTag.
func (t *Timeline) RedoTag(target Target, m Matcher, steps int) (bool, error) {
	if steps < 1 {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.settledPosition()
	matches := t.matchingTags(m, func(no int) bool { return no > pos })
	if len(matches) < steps {
		return false, nil
	}
	if err := t.commitLocked(target); err != nil {
		return false, err
	}
	return true, t.seekLocked(target, matches[steps-1].No)
}

// settledPosition is the position the timeline reaches once pending
// commands are committed.
func (t *Timeline) settledPosition() int {
	if t.pending.IsEmpty() {
		return t.current
	}
	return t.current + 1
}

func (t *Timeline) matchingTags(m Matcher, side func(no int) bool) []Tag {
	if m == nil {
		m = MatchAll()
	}
	var result []Tag
	for _, tag := range t.tags {
		if side(tag.No) && m.Match(tag.Name) {
			result = append(result, tag)
		}
	}
	return result
}
