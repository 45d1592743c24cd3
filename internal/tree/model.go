package tree

import (
	"github.com/roach88/storyline/internal/meta"
	"github.com/roach88/storyline/internal/steps"
	"github.com/roach88/storyline/internal/story"
	"github.com/roach88/storyline/internal/table"
)

// Tree is the execution plan for a batch of stories.
type Tree struct {
	Stories []*Story
}

// Story is a performable story. Allowed is false when the meta filters
// rejected the story and all of its scenarios; such a story carries its
// scenarios for reporting but no steps.
type Story struct {
	Path        string
	Name        string
	Description string
	Narrative   story.Narrative
	Meta        meta.Meta
	Lifecycle   story.Lifecycle

	// GivenStory is set on stories inlined as given stories.
	GivenStory bool

	Allowed bool

	// Parameters were passed down by the referencing scenario.
	Parameters map[string]string

	Before       []Step
	GivenStories *GivenStories
	Scenarios    []*Scenario
	After        []AfterSteps
}

// HasIncludedScenarios reports whether any scenario passed the filters.
func (s *Story) HasIncludedScenarios() bool {
	for _, sc := range s.Scenarios {
		if sc.Allowed {
			return true
		}
	}
	return false
}

// GivenStories are the stories inlined for a story or run, in declaration
// order.
type GivenStories struct {
	Declaration story.GivenStories
	Stories     []*Story
}

// Scenario is a performable scenario: one scenario definition, possibly
// repeated for a story-level examples row.
type Scenario struct {
	Title string

	// Meta is the scenario meta inheriting the story meta.
	Meta meta.Meta

	Allowed bool

	// Examples is the table the runs were expanded from, if any.
	Examples *table.Table

	// Steps are the scenario's raw step lines.
	Steps []string

	Runs []*Run
}

// Parameterized reports whether the runs are example rows.
func (s *Scenario) Parameterized() bool {
	return len(s.Runs) > 0 && s.Runs[0].Parameterized
}

// Run is one concrete execution of a scenario.
type Run struct {
	// Index is the scenario examples row, or -1 when the run is not driven
	// by a scenario row.
	Index int

	// Parameterized is set when the run comes from an examples row, either
	// the scenario's or the story lifecycle's.
	Parameterized bool

	Parameters map[string]string

	// Meta is the row meta inheriting the scenario meta.
	Meta meta.Meta

	Allowed bool

	Before       []Step
	GivenStories *GivenStories
	Steps        []Step
	After        []AfterSteps
}

// Step is a step line bound to its candidate.
type Step struct {
	// Text is the step line after parameter substitution.
	Text string

	// Source is the line as written in the story.
	Source string

	Resolution steps.Resolution
}

// Pending reports whether no candidate matched the step.
func (s Step) Pending() bool {
	return s.Resolution.Pending()
}

// Ignorable reports whether the step is a comment.
func (s Step) Ignorable() bool {
	return s.Resolution.Ignorable()
}

// AfterSteps are after-steps that run only for a matching outcome. Their
// meta filter has already been applied.
type AfterSteps struct {
	Outcome    story.Outcome
	MetaFilter string
	Steps      []Step
}

// Applies reports whether the steps run given whether a failure occurred.
func (a AfterSteps) Applies(failed bool) bool {
	switch a.Outcome {
	case story.OutcomeSuccess:
		return !failed
	case story.OutcomeFailure:
		return failed
	default:
		return true
	}
}

// Count returns the number of performable stories, counting given stories.
func (t *Tree) Count() int {
	n := 0
	var walk func(s *Story)
	walk = func(s *Story) {
		n++
		if s.GivenStories != nil {
			for _, g := range s.GivenStories.Stories {
				walk(g)
			}
		}
		for _, sc := range s.Scenarios {
			for _, r := range sc.Runs {
				if r.GivenStories != nil {
					for _, g := range r.GivenStories.Stories {
						walk(g)
					}
				}
			}
		}
	}
	for _, s := range t.Stories {
		walk(s)
	}
	return n
}

// Runs returns the number of runs across the scenarios of s, excluding
// given stories.
func (s *Story) Runs() int {
	n := 0
	for _, sc := range s.Scenarios {
		n += len(sc.Runs)
	}
	return n
}
