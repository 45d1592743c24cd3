package meta

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes filter errors.
type ErrorCode string

const (
	// ErrCodeInvalidFilter indicates a filter string that cannot be compiled.
	ErrCodeInvalidFilter ErrorCode = "INVALID_FILTER"

	// ErrCodeExpressionFailed indicates an expression that failed at evaluation.
	ErrCodeExpressionFailed ErrorCode = "EXPRESSION_FAILED"
)

// Error is returned when building or evaluating a filter.
type Error struct {
	Code    ErrorCode
	Filter  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (filter=%q): %v", e.Code, e.Message, e.Filter, e.Err)
	}
	return fmt.Sprintf("%s: %s (filter=%q)", e.Code, e.Message, e.Filter)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInvalidFilter reports whether err is a filter compilation error.
func IsInvalidFilter(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeInvalidFilter
	}
	return false
}
