package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/storyline/internal/tree"
)

// Controls are the switches that change how stories run.
type Controls struct {
	// Threads is the number of stories run concurrently. Values below 1
	// mean 1.
	Threads int

	// Timeouts resolves story deadlines. Nil uses DefaultStoryTimeout.
	Timeouts *Timeouts

	// FailOnStoryTimeout makes a timed out story a batch failure.
	FailOnStoryTimeout bool

	// IgnoreFailureInStories collects story failures instead of stopping
	// the batch at the first one.
	IgnoreFailureInStories bool

	// FailOnPending makes pending steps fail their story.
	FailOnPending bool

	// SkipScenariosAfterFailure reports the scenarios following a failure
	// as not performed.
	SkipScenariosAfterFailure bool

	// DryRun reports matched steps as successful without invoking them.
	DryRun bool
}

// DefaultGracePeriod is how long a timed out story may take to observe
// cancellation before it is abandoned.
const DefaultGracePeriod = 500 * time.Millisecond

// Runner performs stories of a performable tree.
//
// Thread-safety: a Runner is safe for concurrent use once configured.
type Runner struct {
	controls  Controls
	reporters ReporterFactory
	ids       IDGenerator
	clock     Clock
	grace     time.Duration
	filter    string
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithControls sets the run controls.
func WithControls(c Controls) RunnerOption {
	return func(r *Runner) {
		r.controls = c
	}
}

// WithReporterFactory sets the reporter used for each top-level story of a
// batch. Default: NopReporter.
func WithReporterFactory(f ReporterFactory) RunnerOption {
	return func(r *Runner) {
		r.reporters = f
	}
}

// WithIDGenerator sets the generator of step failure ids.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) RunnerOption {
	return func(r *Runner) {
		r.ids = g
	}
}

// WithClock sets the clock used for durations. Default: SystemClock.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithGracePeriod sets how long a timed out story may keep running before
// it is abandoned. Default: DefaultGracePeriod.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.grace = d
	}
}

// WithFilterDescription sets the filter text reported for excluded stories
// and scenarios.
func WithFilterDescription(filter string) RunnerOption {
	return func(r *Runner) {
		r.filter = filter
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		reporters: func(*tree.Story) Reporter { return NopReporter{} },
		ids:       UUIDv7Generator{},
		clock:     SystemClock{},
		grace:     DefaultGracePeriod,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Controls returns the run controls.
func (r *Runner) Controls() Controls {
	return r.controls
}

// StoryResult is the outcome of one top-level story.
type StoryResult struct {
	Path     string
	Status   Status
	Started  time.Time
	Duration time.Duration

	// Failure is the story failure. Pending failures are set only when
	// they fail the story.
	Failure error

	// Pending is set when a step had no match.
	Pending bool
}

// RunStory performs a story and its given stories, reporting to rep. The
// story stops invoking steps once ctx is done.
func (r *Runner) RunStory(ctx context.Context, s *tree.Story, rep Reporter) StoryResult {
	start := r.clock.Now()
	o := r.story(ctx, s, rep, false, start)

	res := StoryResult{Path: s.Path, Started: start, Duration: r.clock.Now().Sub(start)}
	switch {
	case !s.Allowed:
		res.Status = StatusExcluded
	case ctx.Err() != nil:
		res.Status = StatusCancelled
		res.Failure = o.failure
	case o.failed(r.controls.FailOnPending):
		res.Status = StatusFailed
		res.Failure = o.failure
	case o.failure != nil:
		res.Status = StatusPending
		res.Pending = true
	default:
		res.Status = StatusSuccessful
	}
	r.logger.Info("story finished",
		"story", s.Path,
		"status", res.Status,
		"duration", res.Duration,
	)
	return res
}

func (r *Runner) performer(s *tree.Story, rep Reporter) *performer {
	return &performer{
		story:    s.Path,
		reporter: rep,
		ids:      r.ids,
		dryRun:   r.controls.DryRun,
		logger:   r.logger,
	}
}

func (r *Runner) story(ctx context.Context, s *tree.Story, rep Reporter, given bool, start time.Time) outcome {
	if !s.Allowed {
		rep.StoryExcluded(s, r.filter)
		rep.BeforeStory(s, given)
		for _, sc := range s.Scenarios {
			rep.ScenarioExcluded(sc, r.filter)
		}
		rep.AfterStory(s, given)
		return outcome{}
	}

	p := r.performer(s, rep)
	rep.BeforeStory(s, given)
	rep.Narrative(s.Narrative)
	rep.Lifecycle(s.Lifecycle)

	var o outcome
	o = o.record(p.steps(ctx, s.Before, RunState{}).Failure)
	if s.GivenStories != nil {
		rep.GivenStories(s.GivenStories.Declaration)
		for _, g := range s.GivenStories.Stories {
			o = o.record(r.story(ctx, g, rep, true, start).failure)
		}
	}

	for _, sc := range s.Scenarios {
		if !sc.Allowed {
			rep.ScenarioExcluded(sc, r.filter)
			continue
		}
		skip := r.controls.SkipScenariosAfterFailure && o.failed(r.controls.FailOnPending)
		o = o.record(r.scenario(ctx, sc, rep, p, skip))
	}

	o = o.record(p.after(ctx, s.After, o.failed(r.controls.FailOnPending)))
	if !given && ctx.Err() != nil {
		rep.StoryCancelled(s, r.clock.Now().Sub(start))
	}
	rep.AfterStory(s, given)
	return o
}

func (r *Runner) scenario(ctx context.Context, sc *tree.Scenario, rep Reporter, p *performer, skip bool) error {
	start := r.clock.Now()
	rep.BeforeScenario(sc)
	var o outcome
	for _, run := range sc.Runs {
		if !run.Allowed {
			continue
		}
		if run.Parameterized {
			rep.Example(run.Parameters, run.Index)
		}
		if skip {
			notPerformed(rep, run)
			continue
		}
		o = o.record(r.run(ctx, run, rep, p))
	}
	rep.AfterScenario(sc, r.clock.Now().Sub(start))
	return o.failure
}

func (r *Runner) run(ctx context.Context, run *tree.Run, rep Reporter, p *performer) error {
	st := p.steps(ctx, run.Before, RunState{})
	if run.GivenStories != nil {
		rep.GivenStories(run.GivenStories.Declaration)
		var given outcome
		for _, g := range run.GivenStories.Stories {
			given = given.record(r.story(ctx, g, rep, true, r.clock.Now()).failure)
		}
		if given.failure != nil && st.Failure == nil {
			st = st.suppress(given.failure)
		}
	}
	st = p.steps(ctx, run.Steps, st)

	o := outcome{failure: st.Failure}
	return o.record(p.after(ctx, run.After, countsAsFailure(st.Failure, r.controls.FailOnPending))).failure
}

func notPerformed(rep Reporter, run *tree.Run) {
	report := func(steps []tree.Step) {
		for _, s := range steps {
			if s.Ignorable() {
				rep.Ignorable(s.Text)
				continue
			}
			rep.NotPerformed(s.Text)
		}
	}
	report(run.Before)
	report(run.Steps)
	for _, a := range run.After {
		report(a.Steps)
	}
}
