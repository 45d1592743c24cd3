package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/storyline/internal/tree"
)

// State is the state of a run while its steps are performed.
type State int

const (
	// Continue performs the next step.
	Continue State = iota

	// Suppressed reports the remaining steps as not performed.
	Suppressed
)

func (s State) String() string {
	if s == Suppressed {
		return "SUPPRESSED"
	}
	return "CONTINUE"
}

// RunState carries the state of one run and the failure that suppressed it.
// Every run starts from the zero value.
type RunState struct {
	State   State
	Failure error
}

func (s RunState) suppress(err error) RunState {
	return RunState{State: Suppressed, Failure: err}
}

// outcome keeps the failure that decides a story or scenario result. The
// first failure is kept, except that a pending failure gives way to a
// later real one.
type outcome struct {
	failure error
}

func (o outcome) record(err error) outcome {
	if err == nil {
		return o
	}
	if o.failure == nil || (isPending(o.failure) && !isPending(err)) {
		o.failure = err
	}
	return o
}

// failed reports whether the kept failure counts as a failure.
func (o outcome) failed(failOnPending bool) bool {
	return countsAsFailure(o.failure, failOnPending)
}

func countsAsFailure(err error, failOnPending bool) bool {
	if err == nil {
		return false
	}
	return failOnPending || !isPending(err)
}

// performer performs the steps of one story.
type performer struct {
	story    string
	reporter Reporter
	ids      IDGenerator
	dryRun   bool
	logger   *slog.Logger
}

// steps performs steps in order starting from st.
func (p *performer) steps(ctx context.Context, steps []tree.Step, st RunState) RunState {
	for _, step := range steps {
		st = p.step(ctx, step, st)
	}
	return st
}

func (p *performer) step(ctx context.Context, step tree.Step, st RunState) RunState {
	if step.Ignorable() {
		p.reporter.Ignorable(step.Text)
		return st
	}
	if st.State == Suppressed || ctx.Err() != nil {
		p.reporter.NotPerformed(step.Text)
		return st
	}
	if step.Pending() {
		p.reporter.Pending(step.Text)
		return st.suppress(&Error{
			Code:    ErrCodePendingStep,
			Message: fmt.Sprintf("no step matches %q", step.Text),
			Story:   p.story,
			Step:    step.Text,
		})
	}
	if p.dryRun {
		p.reporter.Successful(step.Text)
		return st
	}

	if err := invoke(ctx, step); err != nil {
		failure := &Error{
			Code:    ErrCodeStepFailed,
			Message: fmt.Sprintf("step %q failed", step.Text),
			Story:   p.story,
			Step:    step.Text,
			ID:      p.ids.Generate(),
			Err:     err,
		}
		p.logger.Debug("step failed", "story", p.story, "step", step.Text, "id", failure.ID, "error", err)
		p.reporter.Failed(step.Text, failure)
		return st.suppress(failure)
	}
	p.reporter.Successful(step.Text)
	return st
}

// invoke runs the step implementation, turning a panic into an error.
func invoke(ctx context.Context, step tree.Step) (err error) {
	c := step.Resolution.Candidate
	if c.Run == nil {
		return fmt.Errorf("step %q has no implementation", c.Pattern)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Run(ctx, step.Resolution.Args)
}

// after performs the partitions that apply to the outcome, each from a
// fresh state, and returns the first failure among them.
func (p *performer) after(ctx context.Context, parts []tree.AfterSteps, failed bool) error {
	var o outcome
	for _, part := range parts {
		if !part.Applies(failed) {
			continue
		}
		st := p.steps(ctx, part.Steps, RunState{})
		o = o.record(st.Failure)
	}
	return o.failure
}
