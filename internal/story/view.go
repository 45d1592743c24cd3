package story

import (
	"github.com/roach88/storyline/internal/meta"
	"github.com/roach88/storyline/internal/table"
)

// View is a serializable rendering of a Story for output and snapshots.
type View struct {
	Path         string            `json:"path" yaml:"path"`
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Meta         map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	Narrative    *Narrative        `json:"narrative,omitempty" yaml:"narrative,omitempty"`
	GivenStories []string          `json:"given_stories,omitempty" yaml:"given_stories,omitempty"`
	Lifecycle    *LifecycleView    `json:"lifecycle,omitempty" yaml:"lifecycle,omitempty"`
	Scenarios    []ScenarioView    `json:"scenarios" yaml:"scenarios"`
}

// LifecycleView renders a Lifecycle.
type LifecycleView struct {
	Examples *TableView       `json:"examples,omitempty" yaml:"examples,omitempty"`
	Before   []LifecycleSteps `json:"before,omitempty" yaml:"before,omitempty"`
	After    []LifecycleSteps `json:"after,omitempty" yaml:"after,omitempty"`
}

// ScenarioView renders a Scenario.
type ScenarioView struct {
	Title        string            `json:"title" yaml:"title"`
	Meta         map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	GivenStories []string          `json:"given_stories,omitempty" yaml:"given_stories,omitempty"`
	Examples     *TableView        `json:"examples,omitempty" yaml:"examples,omitempty"`
	Steps        []string          `json:"steps" yaml:"steps"`
}

// TableView renders an examples table.
type TableView struct {
	Headers []string   `json:"headers" yaml:"headers"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// ToView converts a story for serialization.
func ToView(s *Story) View {
	v := View{
		Path:         s.Path,
		Name:         s.Name,
		Description:  s.Description,
		Meta:         metaView(s.Meta),
		GivenStories: givenView(s.GivenStories),
		Scenarios:    []ScenarioView{},
	}
	if !s.Narrative.IsEmpty() {
		n := s.Narrative
		v.Narrative = &n
	}
	if !s.Lifecycle.IsEmpty() {
		v.Lifecycle = &LifecycleView{
			Examples: TableViewOf(s.Lifecycle.Examples),
			Before:   s.Lifecycle.Before,
			After:    s.Lifecycle.After,
		}
	}
	for _, sc := range s.Scenarios {
		v.Scenarios = append(v.Scenarios, ScenarioView{
			Title:        sc.Title,
			Meta:         metaView(sc.Meta),
			GivenStories: givenView(sc.GivenStories),
			Examples:     TableViewOf(sc.Examples),
			Steps:        sc.Steps,
		})
	}
	return v
}

// TableViewOf renders a table, or returns nil for a table without headers.
func TableViewOf(t *table.Table) *TableView {
	if t == nil || len(t.Headers()) == 0 {
		return nil
	}
	return &TableView{Headers: t.Headers(), Rows: t.Values()}
}

func metaView(m meta.Meta) map[string]string {
	if m.IsEmpty() {
		return nil
	}
	return m.Properties()
}

func givenView(g GivenStories) []string {
	var out []string
	for _, s := range g.Stories {
		out = append(out, s.String())
	}
	return out
}
