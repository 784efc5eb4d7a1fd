package history

import (
	"fmt"
	"strings"
)

// OperationID identifies a recorded operation on the target object.
type OperationID string

// setPrefix marks operations that assign a field rather than call a method.
const setPrefix = "set:"

// SetOperation returns the operation identifier recorded for an assignment
// to field.
func SetOperation(field string) OperationID {
	return OperationID(setPrefix + field)
}

// Field reports the assigned field if op is an assignment.
func (op OperationID) Field() (string, bool) {
	return strings.CutPrefix(string(op), setPrefix)
}

// Value is a single command argument or snapshot parameter.
// Supported dynamic types are nil, bool, int64, float64, string, []byte,
// []Value and map[string]Value.
type Value = any

// Cost constants.
const (
	// DefaultCost is charged for ordinary operations.
	DefaultCost = 1

	// HighCost is charged for operations that replace large parts of the
	// target state wholesale.
	HighCost = 1000
)

// Command is an immutable record of one mutating operation.
type Command struct {
	Op   OperationID
	Args []Value
	Cost int
}

// NewCommand creates a command. The argument slice is copied.
func NewCommand(op OperationID, args []Value, cost int) Command {
	if cost < 0 {
		cost = 0
	}
	return Command{
		Op:   op,
		Args: cloneValues(args),
		Cost: cost,
	}
}

// Description returns a human-readable description of the command.
func (c Command) Description() string {
	var sb strings.Builder
	sb.WriteString(string(c.Op))
	sb.WriteByte('(')
	for i, arg := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(describeValue(arg))
	}
	sb.WriteByte(')')
	return sb.String()
}

func describeValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(val))
	case []Value:
		return fmt.Sprintf("<%d values>", len(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}

// cloneValues copies a value slice so the caller cannot mutate recorded
// arguments afterwards. Byte slices and nested values are copied as well.
func cloneValues(vals []Value) []Value {
	if vals == nil {
		return nil
	}
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case []byte:
		return append([]byte(nil), val...)
	case []Value:
		return cloneValues(val)
	case map[string]Value:
		m := make(map[string]Value, len(val))
		for k, item := range val {
			m[k] = cloneValue(item)
		}
		return m
	default:
		return val
	}
}

// CostTable maps operations to the cost charged when they are recorded.
// Operations not present cost DefaultCost.
type CostTable map[OperationID]int

// DefaultCostTable returns the costs for operations that replace pixel
// data wholesale.
func DefaultCostTable() CostTable {
	return CostTable{
		"putImageData": HighCost,
		"drawImage":    HighCost,
	}
}

// Cost returns the cost of op.
func (t CostTable) Cost(op OperationID) int {
	if c, ok := t[op]; ok && c >= 0 {
		return c
	}
	return DefaultCost
}

// CommandBuffer accumulates commands between commit boundaries.
// It models an open, uncommitted transaction.
type CommandBuffer struct {
	commands []Command
}

// Add appends a command.
func (b *CommandBuffer) Add(cmd Command) {
	b.commands = append(b.commands, cmd)
}

// Len returns the number of buffered commands.
func (b *CommandBuffer) Len() int {
	return len(b.commands)
}

// IsEmpty returns true if nothing is buffered.
func (b *CommandBuffer) IsEmpty() bool {
	return len(b.commands) == 0
}

// Commands returns a copy of the buffered commands.
func (b *CommandBuffer) Commands() []Command {
	if len(b.commands) == 0 {
		return nil
	}
	out := make([]Command, len(b.commands))
	copy(out, b.commands)
	return out
}

// Reset clears the buffer.
func (b *CommandBuffer) Reset() {
	b.commands = nil
}
