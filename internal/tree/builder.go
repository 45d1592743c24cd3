package tree

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/storyline/internal/keywords"
	"github.com/roach88/storyline/internal/meta"
	"github.com/roach88/storyline/internal/steps"
	"github.com/roach88/storyline/internal/story"
	"github.com/roach88/storyline/internal/table"
)

// Builder turns parsed stories into performable trees. A Builder holds no
// state between calls and may be shared.
type Builder struct {
	registry *steps.Registry
	parser   *story.Parser
	loader   Loader
	filters  meta.Filters
	maxDepth int
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithParser sets the parser used for given stories.
func WithParser(p *story.Parser) Option {
	return func(b *Builder) {
		b.parser = p
	}
}

// WithLoader sets where given stories are loaded from.
func WithLoader(l Loader) Option {
	return func(b *Builder) {
		b.loader = l
	}
}

// WithFilters sets the meta filters. Every filter must allow a story or
// scenario for it to run.
func WithFilters(filters ...*meta.Filter) Option {
	return func(b *Builder) {
		b.filters = append(b.filters, filters...)
	}
}

// WithMaxDepth bounds given-story nesting.
func WithMaxDepth(depth int) Option {
	return func(b *Builder) {
		b.maxDepth = depth
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a builder that binds steps against registry.
func NewBuilder(registry *steps.Registry, opts ...Option) *Builder {
	b := &Builder{
		registry: registry,
		parser:   story.NewParser(),
		loader:   MapLoader{},
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Filters returns the configured meta filters.
func (b *Builder) Filters() meta.Filters {
	return b.filters
}

// Build builds the tree for a batch of stories, in order.
func (b *Builder) Build(stories []*story.Story) (*Tree, error) {
	t := &Tree{}
	for _, s := range stories {
		ps, err := b.BuildStory(s)
		if err != nil {
			return nil, err
		}
		t.Stories = append(t.Stories, ps)
	}
	return t, nil
}

// BuildStory builds the performable tree of one story.
func (b *Builder) BuildStory(s *story.Story) (*Story, error) {
	g := newPathGuard(b.maxDepth)
	if err := g.enter(s.Path); err != nil {
		return nil, err
	}
	defer g.leave()
	return b.story(s, nil, false, g)
}

func (b *Builder) keywords() keywords.Keywords {
	return b.parser.Keywords()
}

// story builds s with params passed down from a referencing scenario.
func (b *Builder) story(s *story.Story, params map[string]string, given bool, g *pathGuard) (*Story, error) {
	ps := &Story{
		Path:        s.Path,
		Name:        s.Name,
		Description: s.Description,
		Narrative:   s.Narrative,
		Meta:        s.Meta,
		Lifecycle:   s.Lifecycle,
		GivenStory:  given,
		Parameters:  params,
	}

	allowed := b.filter(s)
	ps.Allowed = allowed.story || allowed.anyScenario()
	if !ps.Allowed {
		b.logger.Debug("story excluded", "story", s.Path)
		for _, sc := range s.Scenarios {
			ps.Scenarios = append(ps.Scenarios, &Scenario{
				Title: sc.Title,
				Meta:  sc.Meta.InheritFrom(s.Meta),
				Steps: sc.Steps,
			})
		}
		return ps, nil
	}

	ps.Before = b.bind(s.Lifecycle.BeforeSteps(story.ScopeStory), nil)
	after, err := b.after(s.Lifecycle.AfterSteps(story.ScopeStory), s.Meta, nil)
	if err != nil {
		return nil, fmt.Errorf("story %s: %w", s.Path, err)
	}
	ps.After = after

	scenarios, err := b.scenarios(s, params, allowed, g)
	if err != nil {
		return nil, err
	}
	ps.Scenarios = scenarios

	if ps.HasIncludedScenarios() {
		gp := copyParams(params)
		addMetaParameters(gp, s.Meta)
		gs, err := b.givenStories(s.Path, s.GivenStories, s.Lifecycle.Examples, gp, g)
		if err != nil {
			return nil, err
		}
		ps.GivenStories = gs
	}
	return ps, nil
}

// filtered records the filter decisions for a story and its scenarios.
type filtered struct {
	story     bool
	scenarios []bool
}

func (f filtered) anyScenario() bool {
	for _, ok := range f.scenarios {
		if ok {
			return true
		}
	}
	return false
}

// filter decides which parts of s the meta filters allow. A scenario whose
// examples carry meta by row is allowed here and filtered per row instead.
func (b *Builder) filter(s *story.Story) filtered {
	f := filtered{story: b.filters.Allow(s.Meta), scenarios: make([]bool, len(s.Scenarios))}
	for i, sc := range s.Scenarios {
		if sc.HasExamples() && sc.Examples.Properties().MetaByRow() {
			f.scenarios[i] = true
			continue
		}
		f.scenarios[i] = b.filters.Allow(sc.Meta.InheritFrom(s.Meta))
	}
	return f
}

// scenarios expands every scenario against every story examples row.
func (b *Builder) scenarios(s *story.Story, params map[string]string, allowed filtered, g *pathGuard) ([]*Scenario, error) {
	storyRows := []map[string]string{{}}
	if s.Lifecycle.HasExamples() {
		storyRows = s.Lifecycle.Examples.Rows()
	}

	var out []*Scenario
	for i, storyRow := range storyRows {
		for j, sc := range s.Scenarios {
			title := sc.Title
			if s.Lifecycle.HasExamples() {
				title = fmt.Sprintf("%s [%d]", sc.Title, i+1)
			}
			ps := &Scenario{
				Title:    title,
				Meta:     sc.Meta.InheritFrom(s.Meta),
				Allowed:  allowed.scenarios[j],
				Examples: sc.Examples,
				Steps:    sc.Steps,
			}
			out = append(out, ps)
			if !ps.Allowed {
				b.logger.Debug("scenario excluded", "story", s.Path, "scenario", title)
				continue
			}
			runs, err := b.runs(s, sc, ps, params, storyRow, g)
			if err != nil {
				return nil, fmt.Errorf("story %s scenario %q: %w", s.Path, title, err)
			}
			ps.Runs = runs
		}
	}
	return out, nil
}

// runs builds the concrete runs of one scenario for one story row.
func (b *Builder) runs(s *story.Story, sc story.Scenario, ps *Scenario, params, storyRow map[string]string, g *pathGuard) ([]*Run, error) {
	// An integer given-story anchor binds the table to the given story, so
	// the scenario itself runs once.
	byExamples := sc.HasExamples() && !sc.GivenStories.RequireParameters()

	switch {
	case byExamples:
		var runs []*Run
		for idx, row := range sc.Examples.Rows() {
			combined := copyParams(params)
			for k, v := range storyRow {
				combined[k] = v
			}
			for k, v := range row {
				combined[k] = v
			}
			for k, v := range combined {
				combined[k] = table.ReplaceDelimitedNames(v, storyRow, table.DefaultNameDelimiterLeft, table.DefaultNameDelimiterRight)
			}
			resolved, err := table.ResolveReferences(combined, table.DefaultNameDelimiterLeft, table.DefaultNameDelimiterRight)
			if err != nil {
				return nil, fmt.Errorf("examples row %d: %w", idx, err)
			}
			r, err := b.run(s, sc, ps, resolved, idx, true, g)
			if err != nil {
				return nil, err
			}
			runs = append(runs, r)
		}
		return runs, nil
	case len(storyRow) > 0:
		combined := copyParams(params)
		for k, v := range storyRow {
			combined[k] = v
		}
		resolved, err := table.ResolveReferences(combined, table.DefaultNameDelimiterLeft, table.DefaultNameDelimiterRight)
		if err != nil {
			return nil, err
		}
		r, err := b.run(s, sc, ps, resolved, -1, true, g)
		if err != nil {
			return nil, err
		}
		return []*Run{r}, nil
	default:
		r, err := b.run(s, sc, ps, copyParams(params), -1, false, g)
		if err != nil {
			return nil, err
		}
		return []*Run{r}, nil
	}
}

// run builds one run with scenario-scope lifecycle steps around it.
func (b *Builder) run(s *story.Story, sc story.Scenario, ps *Scenario, params map[string]string, idx int, parameterized bool, g *pathGuard) (*Run, error) {
	r := &Run{
		Index:         idx,
		Parameterized: parameterized,
		Parameters:    params,
		Meta:          ps.Meta,
		Allowed:       true,
	}
	if parameterized {
		r.Meta = b.rowMeta(sc, params).InheritFrom(ps.Meta)
		r.Allowed = b.filters.Allow(r.Meta)
		if !r.Allowed {
			b.logger.Debug("example excluded", "story", s.Path, "scenario", ps.Title, "row", idx)
			return r, nil
		}
	}

	addMetaParameters(params, ps.Meta)
	r.Before = b.bind(s.Lifecycle.BeforeSteps(story.ScopeScenario), params)
	gs, err := b.givenStories(s.Path, sc.GivenStories, sc.Examples, params, g)
	if err != nil {
		return nil, err
	}
	r.GivenStories = gs
	r.Steps = b.bind(sc.Steps, params)
	after, err := b.after(s.Lifecycle.AfterSteps(story.ScopeScenario), ps.Meta, params)
	if err != nil {
		return nil, err
	}
	r.After = after
	return r, nil
}

// rowMeta reads the meta column of an examples row, when the scenario's
// table enables meta by row.
func (b *Builder) rowMeta(sc story.Scenario, params map[string]string) meta.Meta {
	if sc.Examples == nil || !sc.Examples.Properties().MetaByRow() {
		return meta.Empty
	}
	kw := b.keywords()
	text, ok := params[kw.Meta]
	if !ok {
		return meta.Empty
	}
	return meta.Parse(text, kw)
}

// bind substitutes <name> references with params and resolves each line
// against the registry.
func (b *Builder) bind(lines []string, params map[string]string) []Step {
	if len(lines) == 0 {
		return nil
	}
	texts := make([]string, len(lines))
	for i, line := range lines {
		texts[i] = table.ReplaceDelimitedNames(line, params, table.DefaultNameDelimiterLeft, table.DefaultNameDelimiterRight)
	}
	resolutions := b.registry.ResolveAll(texts)
	out := make([]Step, len(lines))
	for i := range lines {
		out[i] = Step{Text: texts[i], Source: lines[i], Resolution: resolutions[i]}
	}
	return out
}

// after binds after-step partitions, dropping those whose meta filter
// rejects m.
func (b *Builder) after(parts []story.LifecycleSteps, m meta.Meta, params map[string]string) ([]AfterSteps, error) {
	var out []AfterSteps
	for _, p := range parts {
		if strings.TrimSpace(p.MetaFilter) != "" {
			f, err := meta.NewFilter(p.MetaFilter)
			if err != nil {
				return nil, err
			}
			if !f.Allow(m) {
				continue
			}
		}
		outcome := p.Outcome
		if outcome == "" {
			outcome = story.OutcomeAny
		}
		out = append(out, AfterSteps{Outcome: outcome, MetaFilter: p.MetaFilter, Steps: b.bind(p.Steps, params)})
	}
	return out, nil
}

// givenStories loads, parses and builds each referenced story. examples is
// the referencing table used by integer anchors.
func (b *Builder) givenStories(from string, decl story.GivenStories, examples *table.Table, params map[string]string, g *pathGuard) (*GivenStories, error) {
	if decl.IsEmpty() {
		return nil, nil
	}
	out := &GivenStories{Declaration: decl}
	for _, ref := range decl.Stories {
		if err := g.enter(ref.Path); err != nil {
			return nil, err
		}
		built, err := b.givenStory(from, ref, examples, params, g)
		g.leave()
		if err != nil {
			return nil, err
		}
		out.Stories = append(out.Stories, built)
	}
	return out, nil
}

func (b *Builder) givenStory(from string, ref story.GivenStory, examples *table.Table, params map[string]string, g *pathGuard) (*Story, error) {
	text, err := b.loader.LoadStory(ref.Path)
	if err != nil {
		return nil, &Error{Code: ErrCodeStoryNotFound, Message: fmt.Sprintf("given story %s", ref.Path), Path: from, Err: err}
	}
	s, err := b.parser.Parse(text, ref.Path)
	if err != nil {
		return nil, err
	}
	if anchor := ref.AnchorParameters(); len(anchor) > 0 {
		s = s.WithScenarios(matchingScenarios(s.Scenarios, anchor))
	}

	gp := copyParams(params)
	if idx := ref.RowIndex(); idx >= 0 {
		if examples == nil || idx >= examples.RowCount() {
			return nil, &Error{
				Code:    ErrCodeAnchorOutOfRange,
				Message: fmt.Sprintf("given story %s anchors examples row %d", ref, idx),
				Path:    from,
			}
		}
		row, err := examples.Row(idx)
		if err != nil {
			return nil, err
		}
		for k, v := range row {
			gp[k] = v
		}
	}
	b.logger.Debug("given story", "story", from, "given", ref.Path, "depth", g.depth())
	return b.story(s, gp, true, g)
}

// matchingScenarios keeps the scenarios whose meta has the anchor values.
// The first anchor key the scenario's meta defines decides.
func matchingScenarios(scenarios []story.Scenario, anchor map[string]string) []story.Scenario {
	keys := make([]string, 0, len(anchor))
	for k := range anchor {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []story.Scenario
	for _, sc := range scenarios {
		for _, k := range keys {
			if v, ok := sc.Meta.Lookup(k); ok {
				if v == anchor[k] {
					out = append(out, sc)
				}
				break
			}
		}
	}
	return out
}

// addMetaParameters adds meta properties to params without overriding.
func addMetaParameters(params map[string]string, m meta.Meta) {
	for _, name := range m.Names() {
		if _, ok := params[name]; !ok {
			params[name] = m.Get(name)
		}
	}
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
