package steps

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes step errors.
type ErrorCode string

const (
	// ErrCodeDuplicateCandidate indicates two candidates with the same type and pattern.
	ErrCodeDuplicateCandidate ErrorCode = "DUPLICATE_CANDIDATE"

	// ErrCodeInvalidPattern indicates a pattern that cannot be compiled.
	ErrCodeInvalidPattern ErrorCode = "INVALID_PATTERN"

	// ErrCodeInvalidArgument indicates an argument lookup or conversion failure.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error is returned by candidate registration and argument access.
type Error struct {
	Code    ErrorCode
	Message string

	// Pattern is the candidate pattern involved, if any.
	Pattern string

	// Sources names the step collections involved in a duplicate.
	Sources []string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if len(e.Sources) > 0 {
		msg += " (sources=" + strings.Join(e.Sources, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsDuplicateCandidate reports whether err is a duplicate registration error.
func IsDuplicateCandidate(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeDuplicateCandidate
	}
	return false
}
