package config

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// ErrorCode categorizes configuration errors.
type ErrorCode string

// ErrCodeInvalidConfig indicates a configuration file that cannot be used.
const ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

// Error is returned when a configuration cannot be loaded.
type Error struct {
	Code    ErrorCode
	Message string

	// File is the configuration file, if known.
	File string

	// Pos is the CUE position of the problem, if known.
	Pos token.Pos

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Pos.IsValid():
		msg = fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	case e.File != "":
		msg = e.File + ": " + msg
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

// IsInvalidConfig reports whether err is a configuration error.
func IsInvalidConfig(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeInvalidConfig
	}
	return false
}

func withFile(err error, file string) error {
	var ce *Error
	if errors.As(err, &ce) && ce.File == "" {
		ce.File = file
	}
	return err
}
