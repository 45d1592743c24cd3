package tree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes tree building errors.
type ErrorCode string

const (
	// ErrCodeGivenStoryCycle indicates a story that transitively gives itself.
	ErrCodeGivenStoryCycle ErrorCode = "GIVEN_STORY_CYCLE"

	// ErrCodeGivenStoryDepth indicates given stories nested beyond the limit.
	ErrCodeGivenStoryDepth ErrorCode = "GIVEN_STORY_DEPTH"

	// ErrCodeStoryNotFound indicates a given story the loader could not provide.
	ErrCodeStoryNotFound ErrorCode = "STORY_NOT_FOUND"

	// ErrCodeAnchorOutOfRange indicates a #{n} anchor past the examples table.
	ErrCodeAnchorOutOfRange ErrorCode = "ANCHOR_OUT_OF_RANGE"
)

// Error is returned when a tree cannot be built.
type Error struct {
	Code    ErrorCode
	Message string

	// Path is the story being built when the error occurred.
	Path string

	// Chain lists the given-story paths from the root story, for cycle and
	// depth errors.
	Chain []string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if len(e.Chain) > 0 {
		msg += " (chain=" + strings.Join(e.Chain, " -> ") + ")"
	} else if e.Path != "" {
		msg += " (story=" + e.Path + ")"
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

func hasCode(err error, code ErrorCode) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsGivenStoryCycle reports whether err is a given-story cycle error.
func IsGivenStoryCycle(err error) bool { return hasCode(err, ErrCodeGivenStoryCycle) }

// IsGivenStoryDepth reports whether err is a given-story depth error.
func IsGivenStoryDepth(err error) bool { return hasCode(err, ErrCodeGivenStoryDepth) }

// IsStoryNotFound reports whether err is a missing given story.
func IsStoryNotFound(err error) bool { return hasCode(err, ErrCodeStoryNotFound) }

// IsAnchorOutOfRange reports whether err is an anchor past the examples.
func IsAnchorOutOfRange(err error) bool { return hasCode(err, ErrCodeAnchorOutOfRange) }
