package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyline/internal/meta"
	"github.com/roach88/storyline/internal/steps"
	"github.com/roach88/storyline/internal/story"
	"github.com/roach88/storyline/internal/testutil"
	"github.com/roach88/storyline/internal/tree"
)

// calls counts step invocations by pattern.
type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func newCalls() *calls {
	return &calls{n: map[string]int{}}
}

func (c *calls) get(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[pattern]
}

// step registers pattern with an implementation that counts its calls
// and returns err.
func (c *calls) step(typ steps.Type, pattern string, err error) steps.Candidate {
	return steps.Candidate{
		Type:    typ,
		Pattern: pattern,
		Source:  "test",
		Run: func(context.Context, steps.Args) error {
			c.mu.Lock()
			c.n[pattern]++
			c.mu.Unlock()
			return err
		},
	}
}

func registry(t *testing.T, cs ...steps.Candidate) *steps.Registry {
	t.Helper()
	r := steps.NewRegistry()
	require.NoError(t, r.Register(cs...))
	return r
}

func build(t *testing.T, r *steps.Registry, stories tree.MapLoader, filters []*meta.Filter, paths ...string) *tree.Tree {
	t.Helper()
	p := story.NewParser()
	var parsed []*story.Story
	for _, path := range paths {
		s, err := p.Parse(stories[path], path)
		require.NoError(t, err)
		parsed = append(parsed, s)
	}
	tr, err := tree.NewBuilder(r, tree.WithLoader(stories), tree.WithFilters(filters...)).Build(parsed)
	require.NoError(t, err)
	return tr
}

func buildOne(t *testing.T, r *steps.Registry, path, text string) *tree.Story {
	t.Helper()
	return build(t, r, tree.MapLoader{path: text}, nil, path).Stories[0]
}

var errBoom = errors.New("boom")

func TestRunStory_EventsGolden(t *testing.T) {
	c := newCalls()
	r := registry(t,
		c.step(steps.Given, "a house with $n doors", nil),
		c.step(steps.Then, "it has $n doors", nil),
		c.step(steps.Given, "setup done", nil),
	)
	stories := tree.MapLoader{
		"events.story": `Narrative:
In order to test reporting
As a developer
I want to see events

Scenario: doors
GivenStories: setup.story
Given a house with <n> doors
!-- note
Then it has <n> doors
Examples:
|n|
|2|
|3|

Scenario: pending
Given something unmatched
Then it has 1 doors

Scenario: skipped
Meta: @skip
Given a house with 1 doors`,
		"setup.story": "Scenario: prepare\nGiven setup done",
	}
	tr := build(t, r, stories, []*meta.Filter{meta.MustFilter("-skip")}, "events.story")

	rec := NewRecorder()
	res := NewRunner(WithFilterDescription("-skip")).RunStory(context.Background(), tr.Stories[0], rec)

	assert.Equal(t, StatusPending, res.Status)
	assert.True(t, res.Pending)
	assert.NoError(t, res.Failure)
	assert.Equal(t, 2, c.get("setup done"))
	assert.Equal(t, 2, c.get("a house with $n doors"), "the excluded scenario never runs")

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "story_events", []byte(rec.String()))
}

func TestRunStory_FailureOutcomeAfterSteps(t *testing.T) {
	lifecycle := "Lifecycle:\nAfter:\nOutcome: FAILURE\nThen capture logs\n\n"
	tests := []struct {
		name     string
		step     string
		status   Status
		captured int
	}{
		{name: "failing scenario", step: "Given a failing step", status: StatusFailed, captured: 1},
		{name: "passing scenario", step: "Given a passing step", status: StatusSuccessful, captured: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCalls()
			r := registry(t,
				c.step(steps.Given, "a failing step", errBoom),
				c.step(steps.Given, "a passing step", nil),
				c.step(steps.Then, "capture logs", nil),
			)
			s := buildOne(t, r, "outcome.story", lifecycle+"Scenario: only\n"+tt.step)

			res := NewRunner().RunStory(context.Background(), s, NopReporter{})

			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.captured, c.get("capture logs"))
		})
	}
}

func TestRunStory_FailedStepSuppressesRestOfRun(t *testing.T) {
	c := newCalls()
	r := registry(t,
		c.step(steps.Given, "a failing step", errBoom),
		c.step(steps.When, "something happens", nil),
		c.step(steps.Then, "all is well", nil),
	)
	s := buildOne(t, r, "fail.story", `Scenario: first
Given a failing step
When something happens
!-- still reported

Scenario: second
When something happens
Then all is well`)

	rec := NewRecorder()
	res := NewRunner(WithIDGenerator(testutil.NewFixedIDs("fail-1"))).RunStory(context.Background(), s, rec)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, c.get("something happens"), "the second scenario starts from a fresh state")
	assert.Equal(t, []string{
		"beforeStory fail.story",
		"beforeScenario first",
		"failed Given a failing step: boom",
		"notPerformed When something happens",
		"ignorable !-- still reported",
		"afterScenario first",
		"beforeScenario second",
		"successful When something happens",
		"successful Then all is well",
		"afterScenario second",
		"afterStory fail.story",
	}, rec.Events())

	var ee *Error
	require.True(t, errors.As(res.Failure, &ee))
	assert.Equal(t, ErrCodeStepFailed, ee.Code)
	assert.Equal(t, "fail-1", ee.ID)
	assert.Equal(t, "fail.story", ee.Story)
	assert.Equal(t, "Given a failing step", ee.Step)
	assert.ErrorIs(t, res.Failure, errBoom)
}

func TestRunStory_PendingFailureOrdering(t *testing.T) {
	c := newCalls()
	r := registry(t, c.step(steps.Given, "a failing step", errBoom))

	tests := []struct {
		name string
		text string
	}{
		{name: "pending then failed", text: "Scenario: a\nGiven nothing matches\n\nScenario: b\nGiven a failing step"},
		{name: "failed then pending", text: "Scenario: a\nGiven a failing step\n\nScenario: b\nGiven nothing matches"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := buildOne(t, r, "order.story", tt.text)
			res := NewRunner().RunStory(context.Background(), s, NopReporter{})

			assert.Equal(t, StatusFailed, res.Status)
			assert.True(t, IsStepFailed(res.Failure))
			assert.False(t, IsPendingStep(res.Failure))
		})
	}
}

func TestRunStory_FailOnPending(t *testing.T) {
	r := registry(t)
	s := buildOne(t, r, "pending.story", "Scenario: a\nGiven nothing matches")

	res := NewRunner().RunStory(context.Background(), s, NopReporter{})
	assert.Equal(t, StatusPending, res.Status)
	assert.NoError(t, res.Failure)

	res = NewRunner(WithControls(Controls{FailOnPending: true})).RunStory(context.Background(), s, NopReporter{})
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, IsPendingStep(res.Failure))
}

func TestRunStory_PendingRunsSuccessAfterSteps(t *testing.T) {
	c := newCalls()
	r := registry(t,
		c.step(steps.Then, "on success", nil),
		c.step(steps.Then, "on failure", nil),
	)
	text := "Lifecycle:\nAfter:\nOutcome: SUCCESS\nThen on success\nAfter:\nOutcome: FAILURE\nThen on failure\n\nScenario: a\nGiven nothing matches"
	s := buildOne(t, r, "pending.story", text)

	NewRunner().RunStory(context.Background(), s, NopReporter{})
	assert.Equal(t, 1, c.get("on success"))
	assert.Equal(t, 0, c.get("on failure"))

	NewRunner(WithControls(Controls{FailOnPending: true})).RunStory(context.Background(), s, NopReporter{})
	assert.Equal(t, 1, c.get("on success"))
	assert.Equal(t, 1, c.get("on failure"))
}

func TestRunStory_SkipScenariosAfterFailure(t *testing.T) {
	c := newCalls()
	r := registry(t,
		c.step(steps.Given, "a failing step", errBoom),
		c.step(steps.Given, "a passing step", nil),
	)
	s := buildOne(t, r, "skip.story", "Scenario: a\nGiven a failing step\n\nScenario: b\nGiven a passing step")

	rec := NewRecorder()
	res := NewRunner(WithControls(Controls{SkipScenariosAfterFailure: true})).RunStory(context.Background(), s, rec)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 0, c.get("a passing step"))
	assert.Contains(t, rec.Events(), "notPerformed Given a passing step")
}

func TestRunStory_DryRun(t *testing.T) {
	c := newCalls()
	r := registry(t, c.step(steps.Given, "a failing step", errBoom))
	s := buildOne(t, r, "dry.story", "Scenario: a\nGiven a failing step")

	rec := NewRecorder()
	res := NewRunner(WithControls(Controls{DryRun: true})).RunStory(context.Background(), s, rec)

	assert.Equal(t, StatusSuccessful, res.Status)
	assert.Equal(t, 0, c.get("a failing step"))
	assert.Contains(t, rec.Events(), "successful Given a failing step")
}

func TestRunStory_PanicBecomesFailure(t *testing.T) {
	r := registry(t, steps.Candidate{
		Type:    steps.Given,
		Pattern: "a panicking step",
		Run:     func(context.Context, steps.Args) error { panic("oops") },
	})
	s := buildOne(t, r, "panic.story", "Scenario: a\nGiven a panicking step")

	rec := NewRecorder()
	res := NewRunner().RunStory(context.Background(), s, rec)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, rec.Events(), "failed Given a panicking step: panic: oops")
}

func TestRunStory_ExcludedStory(t *testing.T) {
	c := newCalls()
	r := registry(t, c.step(steps.Given, "a step", nil))
	tr := build(t, r, tree.MapLoader{"skip.story": "Meta: @skip\nScenario: a\nGiven a step\n\nScenario: b\nGiven a step"},
		[]*meta.Filter{meta.MustFilter("-skip")}, "skip.story")

	rec := NewRecorder()
	res := NewRunner(WithFilterDescription("-skip")).RunStory(context.Background(), tr.Stories[0], rec)

	assert.Equal(t, StatusExcluded, res.Status)
	assert.Equal(t, 0, c.get("a step"))
	assert.Equal(t, []string{
		`storyExcluded skip.story filter="-skip"`,
		"beforeStory skip.story",
		`scenarioExcluded a filter="-skip"`,
		`scenarioExcluded b filter="-skip"`,
		"afterStory skip.story",
	}, rec.Events())
}

func TestRunStory_CancelledContext(t *testing.T) {
	c := newCalls()
	r := registry(t, c.step(steps.Given, "a step", nil))
	s := buildOne(t, r, "cancel.story", "Scenario: a\nGiven a step")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := NewRecorder()
	res := NewRunner().RunStory(ctx, s, rec)

	assert.Equal(t, StatusCancelled, res.Status)
	assert.Equal(t, 0, c.get("a step"))
	assert.Equal(t, []string{
		"beforeStory cancel.story",
		"beforeScenario a",
		"notPerformed Given a step",
		"afterScenario a",
		"storyCancelled cancel.story",
		"afterStory cancel.story",
	}, rec.Events())
}

func TestRunStory_GivenStoryFailureSuppressesRun(t *testing.T) {
	c := newCalls()
	r := registry(t,
		c.step(steps.Given, "a failing step", errBoom),
		c.step(steps.When, "the scenario continues", nil),
	)
	stories := tree.MapLoader{
		"main.story":  "Scenario: main\nGivenStories: setup.story\nWhen the scenario continues",
		"setup.story": "Scenario: setup\nGiven a failing step",
	}
	tr := build(t, r, stories, nil, "main.story")

	rec := NewRecorder()
	res := NewRunner().RunStory(context.Background(), tr.Stories[0], rec)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 0, c.get("the scenario continues"))
	assert.Equal(t, []string{
		"beforeStory main.story",
		"beforeScenario main",
		"givenStories setup.story",
		"beforeGivenStory setup.story",
		"beforeScenario setup",
		"failed Given a failing step: boom",
		"afterScenario setup",
		"afterGivenStory setup.story",
		"notPerformed When the scenario continues",
		"afterScenario main",
		"afterStory main.story",
	}, rec.Events())
}

func TestRunStory_StoryScopeSteps(t *testing.T) {
	c := newCalls()
	r := registry(t,
		c.step(steps.Given, "the system is up", nil),
		c.step(steps.Given, "a failing step", errBoom),
		c.step(steps.Then, "tear down", nil),
		c.step(steps.Then, "celebrate", nil),
	)
	text := `Lifecycle:
Before:
Scope: STORY
Given the system is up
After:
Scope: STORY
Outcome: ANY
Then tear down
After:
Scope: STORY
Outcome: SUCCESS
Then celebrate

Scenario: a
Given a failing step

Scenario: b
Given a failing step`
	s := buildOne(t, r, "scope.story", text)

	res := NewRunner().RunStory(context.Background(), s, NopReporter{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, c.get("the system is up"))
	assert.Equal(t, 2, c.get("a failing step"))
	assert.Equal(t, 1, c.get("tear down"))
	assert.Equal(t, 0, c.get("celebrate"))
}

func TestRunStory_DurationsFromClock(t *testing.T) {
	r := registry(t, steps.Candidate{Type: steps.Given, Pattern: "a step", Run: func(context.Context, steps.Args) error { return nil }})
	s := buildOne(t, r, "clock.story", "Scenario: a\nGiven a step")

	clock := testutil.NewStepClock(1)
	res := NewRunner(WithClock(clock)).RunStory(context.Background(), s, NopReporter{})

	assert.Equal(t, testutil.Epoch, res.Started)
	assert.Positive(t, res.Duration)
}

func TestOutcome_Record(t *testing.T) {
	pending := &Error{Code: ErrCodePendingStep}
	failed := &Error{Code: ErrCodeStepFailed}
	other := &Error{Code: ErrCodeStepFailed, Message: "later"}

	var o outcome
	o = o.record(nil)
	assert.Nil(t, o.failure)

	o = o.record(pending)
	assert.Same(t, pending, o.failure)
	assert.False(t, o.failed(false))
	assert.True(t, o.failed(true))

	o = o.record(failed)
	assert.Same(t, failed, o.failure)

	o = o.record(other)
	assert.Same(t, failed, o.failure, "the first real failure is kept")

	o = o.record(pending)
	assert.Same(t, failed, o.failure)
}
