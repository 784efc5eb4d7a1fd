package tracking

import "github.com/dshills/rewind/internal/engine/history"

// Mode classifies how a tracker handles an operation.
type Mode uint8

const (
	// Buffer records the operation in the pending buffer.
	Buffer Mode = iota

	// Commit records the operation and commits the pending buffer.
	Commit

	// Ignore passes the operation through without recording it.
	Ignore
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Buffer:
		return "buffer"
	case Commit:
		return "commit"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "buffer":
		return Buffer, true
	case "commit":
		return Commit, true
	case "ignore":
		return Ignore, true
	default:
		return Buffer, false
	}
}

// Table maps operations to modes.
type Table map[history.OperationID]Mode

// Mode returns the mode of op. Unlisted operations are buffered.
func (t Table) Mode(op history.OperationID) Mode {
	if m, ok := t[op]; ok {
		return m
	}
	return Buffer
}

// Clone returns a copy of the table.
func (t Table) Clone() Table {
	c := make(Table, len(t))
	for op, m := range t {
		c[op] = m
	}
	return c
}

// DefaultTable returns the classification for a 2D drawing context.
func DefaultTable() Table {
	t := Table{}
	for _, op := range []history.OperationID{
		"canvas",
		"createImageData",
		"createLinearGradient",
		"createPattern",
		"createRadialGradient",
		"getImageData",
		"getLineDash",
		"isPointInPath",
		"isPointInStroke",
		"measureText",
		"scrollPathIntoView",
	} {
		t[op] = Ignore
	}
	for _, op := range []history.OperationID{
		"clearRect",
		"drawFocusIfNeeded",
		"drawImage",
		"fill",
		"fillRect",
		"fillText",
		"putImageData",
		"resize",
		"stroke",
		"strokeRect",
		"strokeText",
	} {
		t[op] = Commit
	}
	return t
}
