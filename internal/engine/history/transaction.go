package history

import "fmt"

// Transaction is an atomic, ordered batch of commands with a sequence
// number. Its successor is the transaction numbered No+1 on the timeline.
type Transaction struct {
	No       int
	Commands []Command
	Cost     int
}

func newTransaction(no int, cmds []Command) *Transaction {
	tx := &Transaction{
		No:       no,
		Commands: cmds,
	}
	for _, cmd := range cmds {
		tx.Cost += cmd.Cost
	}
	return tx
}

// IsEmpty returns true if the transaction has no commands.
// Only the sentinel is empty.
func (tx *Transaction) IsEmpty() bool {
	return len(tx.Commands) == 0
}

// Description returns a human-readable description.
func (tx *Transaction) Description() string {
	switch len(tx.Commands) {
	case 0:
		return "(empty)"
	case 1:
		return tx.Commands[0].Description()
	default:
		return fmt.Sprintf("%s and %d more", tx.Commands[0].Description(), len(tx.Commands)-1)
	}
}

// apply replays every command in order.
func (tx *Transaction) apply(target Target) error {
	for i, cmd := range tx.Commands {
		if err := target.Apply(cmd); err != nil {
			return fmt.Errorf("%w: transaction %d step %d (%s): %w", ErrReplay, tx.No, i, cmd.Op, err)
		}
	}
	return nil
}
