package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeStoryTimedOut indicates a story that did not finish before its deadline.
	ErrCodeStoryTimedOut ErrorCode = "STORY_TIMED_OUT"

	// ErrCodeStoryFailed indicates a story whose steps failed.
	ErrCodeStoryFailed ErrorCode = "STORY_FAILED"

	// ErrCodeBatchFailed aggregates the failures of a batch.
	ErrCodeBatchFailed ErrorCode = "BATCH_FAILED"

	// ErrCodeInvalidTimeouts indicates a malformed story timeout specification.
	ErrCodeInvalidTimeouts ErrorCode = "INVALID_TIMEOUTS"

	// ErrCodePendingStep indicates a step no candidate matched.
	ErrCodePendingStep ErrorCode = "PENDING_STEP"

	// ErrCodeStepFailed wraps the error returned by a step implementation.
	ErrCodeStepFailed ErrorCode = "STEP_FAILED"
)

// Error is returned by story and batch execution.
type Error struct {
	Code    ErrorCode
	Message string

	// Story is the path of the story involved, if any.
	Story string

	// Step is the step text, for step errors.
	Step string

	// ID correlates a step failure across reports.
	ID string

	// Failures holds the per-story failures of a BATCH_FAILED error.
	Failures map[string]error

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	var ctx []string
	if e.Story != "" {
		ctx = append(ctx, "story="+e.Story)
	}
	if e.ID != "" {
		ctx = append(ctx, "id="+e.ID)
	}
	if len(ctx) > 0 {
		msg += " (" + strings.Join(ctx, ", ") + ")"
	}
	if len(e.Failures) > 0 {
		paths := make([]string, 0, len(e.Failures))
		for p := range e.Failures {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			msg += fmt.Sprintf("\n  %s: %v", p, e.Failures[p])
		}
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
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsStoryTimedOut reports whether err is a story timeout.
func IsStoryTimedOut(err error) bool { return hasCode(err, ErrCodeStoryTimedOut) }

// IsStoryFailed reports whether err is a story failure.
func IsStoryFailed(err error) bool { return hasCode(err, ErrCodeStoryFailed) }

// IsBatchFailed reports whether err aggregates batch failures.
func IsBatchFailed(err error) bool { return hasCode(err, ErrCodeBatchFailed) }

// IsPendingStep reports whether err is a pending step failure.
func IsPendingStep(err error) bool { return hasCode(err, ErrCodePendingStep) }

// IsStepFailed reports whether err wraps a failed step.
func IsStepFailed(err error) bool { return hasCode(err, ErrCodeStepFailed) }

// IsInvalidTimeouts reports whether err is a malformed timeout specification.
func IsInvalidTimeouts(err error) bool { return hasCode(err, ErrCodeInvalidTimeouts) }

// isPending reports whether err is a pending failure and nothing worse.
func isPending(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodePendingStep
}
