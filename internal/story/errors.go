package story

import (
	"errors"
	"fmt"
)

// ErrCodeParse is the code carried by every ParseError.
const ErrCodeParse = "PARSE_ERROR"

// ParseError reports malformed story text. No partial story is returned
// alongside it.
type ParseError struct {
	// Path is the story being parsed.
	Path string

	// Section names the part of the story that failed, e.g. "Lifecycle".
	Section string

	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", ErrCodeParse, e.Section, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (story=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
