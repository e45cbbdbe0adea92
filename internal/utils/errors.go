package utils

import (
	"errors"
	"fmt"
)

// ErrInsufficientData signals that an engine does not yet hold enough samples
// to answer; callers may retry once more data has been observed.
var ErrInsufficientData = errors.New("insufficient data")

// ErrNoConnectors signals an empty connector catalog during routing.
var ErrNoConnectors = errors.New("no connectors available")

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
