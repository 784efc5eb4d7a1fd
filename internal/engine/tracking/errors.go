package tracking

import "errors"

var (
	// ErrDisabled indicates the tracker was disabled.
	ErrDisabled = errors.New("tracking disabled")

	// ErrUnsupported indicates an operation the object does not report.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrNotQueryable indicates an ignored operation on an object that
	// cannot answer queries.
	ErrNotQueryable = errors.New("object does not answer queries")
)
