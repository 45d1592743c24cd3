package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/storyline/internal/tree"
)

// BatchResult is the outcome of a batch.
type BatchResult struct {
	Started  time.Time
	Duration time.Duration

	// Stories holds one result per top-level story, in tree order.
	// Stories never started because the batch stopped are NOT_PERFORMED.
	Stories []StoryResult

	// Failures maps story paths to their failure when failures are
	// collected.
	Failures map[string]error
}

// Err returns a BATCH_FAILED error listing the collected failures, or nil.
func (b *BatchResult) Err() error {
	if len(b.Failures) == 0 {
		return nil
	}
	return &Error{
		Code:     ErrCodeBatchFailed,
		Message:  fmt.Sprintf("%d of %d stories failed", len(b.Failures), len(b.Stories)),
		Failures: b.Failures,
	}
}

// Count returns the number of stories with the given status.
func (b *BatchResult) Count(status Status) int {
	n := 0
	for _, s := range b.Stories {
		if s.Status == status {
			n++
		}
	}
	return n
}

// RunBatch performs the stories of t concurrently.
//
// Each story gets its own reporter and deadline. With IgnoreFailureInStories
// every story runs and failures are collected into the result; otherwise
// the first failure cancels the batch and is returned as STORY_FAILED (or
// STORY_TIMED_OUT). The result is returned in both cases.
func (r *Runner) RunBatch(ctx context.Context, t *tree.Tree) (*BatchResult, error) {
	threads := r.controls.Threads
	if threads < 1 {
		threads = 1
	}
	result := &BatchResult{
		Started: r.clock.Now(),
		Stories: make([]StoryResult, len(t.Stories)),
	}
	for i, s := range t.Stories {
		result.Stories[i] = StoryResult{Path: s.Path, Status: StatusNotPerformed}
	}

	r.logger.Info("batch started", "stories", len(t.Stories), "threads", threads)

	var mu sync.Mutex
	failures := make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, s := range t.Stories {
		i, s := i, s
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := r.runWithTimeout(gctx, s)
			result.Stories[i] = res

			err := r.storyError(res)
			if err == nil {
				return nil
			}
			if r.controls.IgnoreFailureInStories {
				mu.Lock()
				failures[s.Path] = err
				mu.Unlock()
				return nil
			}
			return err
		})
	}
	err := g.Wait()

	result.Duration = r.clock.Now().Sub(result.Started)
	if len(failures) > 0 {
		result.Failures = failures
	}
	r.logger.Info("batch finished",
		"stories", len(t.Stories),
		"failed", result.Count(StatusFailed),
		"timed_out", result.Count(StatusTimedOut),
		"duration", result.Duration,
	)
	return result, err
}

// runWithTimeout runs one story under its deadline. A story that does not
// return within the grace period after its deadline is abandoned; its
// duration is the time to the deadline.
func (r *Runner) runWithTimeout(ctx context.Context, s *tree.Story) StoryResult {
	timeout := r.controls.Timeouts.For(s.Path)
	started := r.clock.Now()
	var (
		sctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		sctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	rep := r.reporters(s)
	done := make(chan StoryResult, 1)
	go func() {
		done <- r.RunStory(sctx, s, rep)
	}()

	var res StoryResult
	select {
	case res = <-done:
	case <-sctx.Done():
		select {
		case res = <-done:
		case <-time.After(r.grace):
			r.logger.Warn("story abandoned", "story", s.Path, "grace", r.grace)
			res = StoryResult{Path: s.Path, Status: StatusCancelled, Started: started, Duration: timeout}
		}
	}

	if res.Status == StatusCancelled && ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("story timed out", "story", s.Path, "timeout", timeout)
		rep.StoryTimeout(s, timeout)
		res.Status = StatusTimedOut
		res.Failure = &Error{
			Code:    ErrCodeStoryTimedOut,
			Message: fmt.Sprintf("story did not finish within %s", timeout),
			Story:   s.Path,
			Err:     res.Failure,
		}
	}
	return res
}

// storyError returns the batch level error for a story result, or nil when
// the result does not fail the batch.
func (r *Runner) storyError(res StoryResult) error {
	switch res.Status {
	case StatusTimedOut:
		if r.controls.FailOnStoryTimeout {
			return res.Failure
		}
		return nil
	case StatusFailed:
		return &Error{
			Code:    ErrCodeStoryFailed,
			Message: "story failed",
			Story:   res.Path,
			Err:     res.Failure,
		}
	}
	return nil
}
