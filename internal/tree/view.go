package tree

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// View is a serializable rendering of a performable story.
type View struct {
	Path         string            `json:"path" yaml:"path"`
	Allowed      bool              `json:"allowed" yaml:"allowed"`
	GivenStory   bool              `json:"given_story,omitempty" yaml:"given_story,omitempty"`
	Meta         map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	Parameters   map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Before       []StepView        `json:"before,omitempty" yaml:"before,omitempty"`
	GivenStories []View            `json:"given_stories,omitempty" yaml:"given_stories,omitempty"`
	Scenarios    []ScenarioView    `json:"scenarios" yaml:"scenarios"`
	After        []AfterView       `json:"after,omitempty" yaml:"after,omitempty"`
}

// ScenarioView renders a Scenario.
type ScenarioView struct {
	Title   string            `json:"title" yaml:"title"`
	Allowed bool              `json:"allowed" yaml:"allowed"`
	Meta    map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	Runs    []RunView         `json:"runs,omitempty" yaml:"runs,omitempty"`
}

// RunView renders a Run.
type RunView struct {
	Index        int               `json:"index" yaml:"index"`
	Allowed      bool              `json:"allowed" yaml:"allowed"`
	Parameters   map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Before       []StepView        `json:"before,omitempty" yaml:"before,omitempty"`
	GivenStories []View            `json:"given_stories,omitempty" yaml:"given_stories,omitempty"`
	Steps        []StepView        `json:"steps,omitempty" yaml:"steps,omitempty"`
	After        []AfterView       `json:"after,omitempty" yaml:"after,omitempty"`
}

// StepView renders a bound Step.
type StepView struct {
	Text    string `json:"text" yaml:"text"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Status  string `json:"status" yaml:"status"`
}

// AfterView renders an AfterSteps partition.
type AfterView struct {
	Outcome string     `json:"outcome" yaml:"outcome"`
	Steps   []StepView `json:"steps" yaml:"steps"`
}

// Step binding states shown in plans.
const (
	bindingMatched   = "matched"
	bindingPending   = "pending"
	bindingIgnorable = "ignorable"
)

// ToView converts a performable story for serialization.
func ToView(s *Story) View {
	v := View{
		Path:       s.Path,
		Allowed:    s.Allowed,
		GivenStory: s.GivenStory,
		Meta:       nonEmpty(s.Meta.Properties()),
		Parameters: nonEmpty(s.Parameters),
		Before:     stepViews(s.Before),
		Scenarios:  []ScenarioView{},
		After:      afterViews(s.After),
	}
	if s.GivenStories != nil {
		for _, g := range s.GivenStories.Stories {
			v.GivenStories = append(v.GivenStories, ToView(g))
		}
	}
	for _, sc := range s.Scenarios {
		sv := ScenarioView{Title: sc.Title, Allowed: sc.Allowed, Meta: nonEmpty(sc.Meta.Properties())}
		for _, r := range sc.Runs {
			rv := RunView{
				Index:      r.Index,
				Allowed:    r.Allowed,
				Parameters: nonEmpty(r.Parameters),
				Before:     stepViews(r.Before),
				Steps:      stepViews(r.Steps),
				After:      afterViews(r.After),
			}
			if r.GivenStories != nil {
				for _, g := range r.GivenStories.Stories {
					rv.GivenStories = append(rv.GivenStories, ToView(g))
				}
			}
			sv.Runs = append(sv.Runs, rv)
		}
		v.Scenarios = append(v.Scenarios, sv)
	}
	return v
}

func stepViews(steps []Step) []StepView {
	var out []StepView
	for _, s := range steps {
		sv := StepView{Text: s.Text, Type: string(s.Resolution.Type)}
		switch {
		case s.Ignorable():
			sv.Status = bindingIgnorable
			sv.Type = ""
		case s.Pending():
			sv.Status = bindingPending
		default:
			sv.Status = bindingMatched
			sv.Pattern = s.Resolution.Candidate.Pattern
		}
		out = append(out, sv)
	}
	return out
}

func afterViews(parts []AfterSteps) []AfterView {
	var out []AfterView
	for _, p := range parts {
		out = append(out, AfterView{Outcome: string(p.Outcome), Steps: stepViews(p.Steps)})
	}
	return out
}

func nonEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

// Dump writes an indented text outline of the tree.
func Dump(w io.Writer, t *Tree) error {
	d := &dumper{w: w}
	for _, s := range t.Stories {
		d.story(s, 0)
	}
	return d.err
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) line(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (d *dumper) story(s *Story, depth int) {
	label := "story"
	if s.GivenStory {
		label = "given story"
	}
	d.line(depth, "%s %s%s", label, s.Path, excluded(s.Allowed))
	if len(s.Parameters) > 0 {
		d.line(depth+1, "parameters %s", formatParams(s.Parameters))
	}
	d.steps(depth+1, "before story", s.Before)
	if s.GivenStories != nil {
		for _, g := range s.GivenStories.Stories {
			d.story(g, depth+1)
		}
	}
	for _, sc := range s.Scenarios {
		d.line(depth+1, "scenario %q%s", sc.Title, excluded(sc.Allowed))
		for _, r := range sc.Runs {
			d.run(r, depth+2)
		}
	}
	d.after(depth+1, "after story", s.After)
}

func (d *dumper) run(r *Run, depth int) {
	if r.Parameterized {
		d.line(depth, "example %d %s%s", r.Index, formatParams(r.Parameters), excluded(r.Allowed))
	} else {
		d.line(depth, "run")
	}
	d.steps(depth+1, "before", r.Before)
	if r.GivenStories != nil {
		for _, g := range r.GivenStories.Stories {
			d.story(g, depth+1)
		}
	}
	d.steps(depth+1, "", r.Steps)
	d.after(depth+1, "after", r.After)
}

func (d *dumper) steps(depth int, label string, steps []Step) {
	if len(steps) == 0 {
		return
	}
	if label != "" {
		d.line(depth, "%s", label)
		depth++
	}
	for _, s := range steps {
		if s.Pending() {
			d.line(depth, "%s (PENDING)", s.Text)
			continue
		}
		d.line(depth, "%s", s.Text)
	}
}

func (d *dumper) after(depth int, label string, parts []AfterSteps) {
	for _, p := range parts {
		d.steps(depth, fmt.Sprintf("%s %s", label, p.Outcome), p.Steps)
	}
}

func excluded(allowed bool) string {
	if allowed {
		return ""
	}
	return " (EXCLUDED)"
}

func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
