package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when the merged layers do not decode onto
// Config: an unknown key, or a value of the wrong type.
var ErrInvalidConfig = errors.New("invalid configuration")

// ParseError reports a syntax error in a TOML or YAML config file.
// Line and Column are zero when the decoder gives no position.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
		if e.Column > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Column)
		}
	}
	return fmt.Sprintf("config %s: %s", loc, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationErrorCode classifies a ValidationError.
type ValidationErrorCode string

const (
	ErrCodeOutOfRange      ValidationErrorCode = "out_of_range"
	ErrCodeInvalidEnum     ValidationErrorCode = "invalid_enum"
	ErrCodeRequiredMissing ValidationErrorCode = "required_missing"
)

func (c ValidationErrorCode) String() string {
	if c == "" {
		return "unknown"
	}
	return string(c)
}

// ValidationError is one rejected setting. Validate joins every
// ValidationError it finds, so callers use errors.As to pick them out.
type ValidationError struct {
	Path    string // dotted key, e.g. history.checkpoint_threshold
	Message string
	Value   any
	Code    ValidationErrorCode
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s = %v: %s", e.Path, e.Value, e.Message)
}
