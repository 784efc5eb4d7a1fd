package canvas

import "errors"

var (
	// ErrUnknownOperation indicates an operation the context does not support.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidArgument indicates a missing or mistyped argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidColor indicates a color string that cannot be parsed.
	ErrInvalidColor = errors.New("invalid color")

	// ErrInvalidSize indicates dimensions outside the supported range.
	ErrInvalidSize = errors.New("invalid canvas size")

	// ErrInvalidState indicates a snapshot that does not describe a context.
	ErrInvalidState = errors.New("invalid canvas state")
)
