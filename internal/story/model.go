package story

import (
	"strconv"
	"strings"

	"github.com/roach88/storyline/internal/meta"
	"github.com/roach88/storyline/internal/table"
)

// Story is a parsed story document. Everything except Name is fixed once
// parsed.
type Story struct {
	// Path identifies where the story was loaded from. May be empty.
	Path string

	// Name is the display name, defaulting to the base name of Path.
	Name string

	// Description is the free text before the first section keyword.
	Description string

	Narrative    Narrative
	Meta         meta.Meta
	GivenStories GivenStories
	Lifecycle    Lifecycle
	Scenarios    []Scenario
}

// WithScenarios returns a shallow copy of the story with its scenarios replaced.
func (s *Story) WithScenarios(scenarios []Scenario) *Story {
	out := *s
	out.Scenarios = scenarios
	return &out
}

// Narrative is the goal, role and benefit statement of a story. Either
// InOrderTo or SoThat is set, depending on which form was written.
type Narrative struct {
	InOrderTo string `json:"in_order_to,omitempty" yaml:"in_order_to,omitempty"`
	AsA       string `json:"as_a,omitempty" yaml:"as_a,omitempty"`
	IWantTo   string `json:"i_want_to,omitempty" yaml:"i_want_to,omitempty"`
	SoThat    string `json:"so_that,omitempty" yaml:"so_that,omitempty"`
}

// IsEmpty reports whether no narrative was given.
func (n Narrative) IsEmpty() bool {
	return n == Narrative{}
}

// Scenario is one scenario definition. A scenario with a non-empty examples
// table runs once per row.
type Scenario struct {
	Title        string
	Meta         meta.Meta
	GivenStories GivenStories
	Examples     *table.Table

	// Steps holds the raw step lines, including ignorable comment lines.
	Steps []string
}

// HasExamples reports whether the scenario declares at least one example row.
func (s Scenario) HasExamples() bool {
	return s.Examples != nil && !s.Examples.IsEmpty()
}

// GivenStories is a list of story references declared by a story or scenario.
type GivenStories struct {
	// Text is the declaration as written.
	Text    string
	Stories []GivenStory
}

// Paths returns the referenced paths in declaration order.
func (g GivenStories) Paths() []string {
	paths := make([]string, len(g.Stories))
	for i, s := range g.Stories {
		paths[i] = s.Path
	}
	return paths
}

// IsEmpty reports whether no story is referenced.
func (g GivenStories) IsEmpty() bool {
	return len(g.Stories) == 0
}

// RequireParameters reports whether any reference binds to an examples row.
func (g GivenStories) RequireParameters() bool {
	for _, s := range g.Stories {
		if s.RowIndex() >= 0 {
			return true
		}
	}
	return false
}

// GivenStory references another story, optionally anchored.
//
// The anchor "#{1}" binds the referenced story to examples row 1 of the
// referencing scenario. The anchor "#{id:login;env:ci}" restricts the
// referenced story to scenarios whose meta has those values.
type GivenStory struct {
	Path   string
	Anchor string
}

// RowIndex returns the examples row bound by an integer anchor, or -1.
func (g GivenStory) RowIndex() int {
	n, err := strconv.Atoi(strings.TrimSpace(g.Anchor))
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// AnchorParameters returns the key:value pairs of a non-integer anchor.
func (g GivenStory) AnchorParameters() map[string]string {
	if g.Anchor == "" || g.RowIndex() >= 0 {
		return nil
	}
	params := map[string]string{}
	for _, pair := range strings.Split(g.Anchor, ";") {
		k, v, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return params
}

// String renders the reference as it would be written.
func (g GivenStory) String() string {
	if g.Anchor == "" {
		return g.Path
	}
	return g.Path + "#{" + g.Anchor + "}"
}

// Scope says whether lifecycle steps run per story or per scenario.
type Scope string

const (
	ScopeScenario Scope = "SCENARIO"
	ScopeStory    Scope = "STORY"
)

// Outcome selects the after-steps that run for a given result.
type Outcome string

const (
	OutcomeAny     Outcome = "ANY"
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Lifecycle holds shared before and after steps and an optional story-level
// examples table.
type Lifecycle struct {
	Examples *table.Table
	Before   []LifecycleSteps
	After    []LifecycleSteps
}

// LifecycleSteps is one partition of lifecycle steps. Outcome and MetaFilter
// only apply to after-steps.
type LifecycleSteps struct {
	Scope      Scope    `json:"scope" yaml:"scope"`
	Outcome    Outcome  `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	MetaFilter string   `json:"meta_filter,omitempty" yaml:"meta_filter,omitempty"`
	Steps      []string `json:"steps" yaml:"steps"`
}

// IsEmpty reports whether the lifecycle declares nothing.
func (l Lifecycle) IsEmpty() bool {
	return len(l.Before) == 0 && len(l.After) == 0 && !l.HasExamples()
}

// HasExamples reports whether a story-level examples table has rows.
func (l Lifecycle) HasExamples() bool {
	return l.Examples != nil && !l.Examples.IsEmpty()
}

// BeforeSteps returns the before-steps declared for scope, in order.
func (l Lifecycle) BeforeSteps(scope Scope) []string {
	var steps []string
	for _, p := range l.Before {
		if p.Scope == scope {
			steps = append(steps, p.Steps...)
		}
	}
	return steps
}

// AfterSteps returns the after-step partitions declared for scope, in order.
func (l Lifecycle) AfterSteps(scope Scope) []LifecycleSteps {
	var parts []LifecycleSteps
	for _, p := range l.After {
		if p.Scope == scope {
			parts = append(parts, p)
		}
	}
	return parts
}
