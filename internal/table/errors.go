package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes table errors.
type ErrorCode string

const (
	// ErrCodeColumnNotFound indicates a lookup of a header the table does not have.
	ErrCodeColumnNotFound ErrorCode = "COLUMN_NOT_FOUND"

	// ErrCodeNonDistinctColumn indicates a lookup of a header that appears more than once.
	ErrCodeNonDistinctColumn ErrorCode = "NON_DISTINCT_COLUMN"

	// ErrCodeRowNotFound indicates an out-of-range row index.
	ErrCodeRowNotFound ErrorCode = "ROW_NOT_FOUND"

	// ErrCodeCircularReference indicates a reference chain that returns to itself.
	ErrCodeCircularReference ErrorCode = "CIRCULAR_REFERENCE"

	// ErrCodeInvalidProperties indicates a malformed inline property block.
	ErrCodeInvalidProperties ErrorCode = "INVALID_PROPERTIES"

	// ErrCodeUnknownTransformer indicates a property block naming an unregistered transformer.
	ErrCodeUnknownTransformer ErrorCode = "UNKNOWN_TRANSFORMER"

	// ErrCodeValueConversion indicates a cell that cannot be read as the requested type.
	ErrCodeValueConversion ErrorCode = "VALUE_CONVERSION"
)

// Error is returned by table parsing, lookup and conversion.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Chain is the reference path for circular reference errors.
	Chain []string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsColumnNotFound reports whether err is a missing column error.
func IsColumnNotFound(err error) bool { return hasCode(err, ErrCodeColumnNotFound) }

// IsNonDistinctColumn reports whether err is a duplicated column error.
func IsNonDistinctColumn(err error) bool { return hasCode(err, ErrCodeNonDistinctColumn) }

// IsRowNotFound reports whether err is an out-of-range row error.
func IsRowNotFound(err error) bool { return hasCode(err, ErrCodeRowNotFound) }

// IsCircularReference reports whether err is a circular reference error.
func IsCircularReference(err error) bool { return hasCode(err, ErrCodeCircularReference) }

// IsInvalidProperties reports whether err is a malformed property error.
func IsInvalidProperties(err error) bool { return hasCode(err, ErrCodeInvalidProperties) }

func columnNotFound(name string) *Error {
	return &Error{Code: ErrCodeColumnNotFound, Message: fmt.Sprintf("column %q not found", name)}
}

func nonDistinctColumn(name string, count int) *Error {
	return &Error{
		Code:    ErrCodeNonDistinctColumn,
		Message: fmt.Sprintf("column %q appears %d times", name, count),
	}
}

func rowNotFound(row, count int) *Error {
	return &Error{
		Code:    ErrCodeRowNotFound,
		Message: fmt.Sprintf("row %d not found (table has %d rows)", row, count),
	}
}

func circularReference(chain []string) *Error {
	return &Error{
		Code:    ErrCodeCircularReference,
		Message: "circular reference " + strings.Join(chain, " -> "),
		Chain:   chain,
	}
}

func invalidProperties(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidProperties, Message: fmt.Sprintf(format, args...)}
}
