package stepdefs

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes step definition errors.
type ErrorCode string

const (
	// ErrCodeInvalidDefinition indicates a malformed definitions file.
	ErrCodeInvalidDefinition ErrorCode = "INVALID_DEFINITION"

	// ErrCodeCommandFailed indicates a step command that exited unsuccessfully.
	ErrCodeCommandFailed ErrorCode = "COMMAND_FAILED"
)

// Error is returned when loading definitions or running their commands.
type Error struct {
	Code    ErrorCode
	Message string

	// File is the definitions file involved, if any.
	File string

	// Output is the tail of the command's combined output.
	Output string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.File != "" {
		msg += fmt.Sprintf(" (file=%s)", e.File)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInvalidDefinition reports whether err is a malformed definitions error.
func IsInvalidDefinition(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidDefinition
	}
	return false
}

// IsCommandFailed reports whether err is a failed step command.
func IsCommandFailed(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeCommandFailed
	}
	return false
}
