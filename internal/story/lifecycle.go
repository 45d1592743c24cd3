package story

import (
	"strings"
)

type lifecycleMode int

const (
	lifecycleStart lifecycleMode = iota
	lifecycleExamples
	lifecycleBefore
	lifecycleAfter
)

// partition accumulates the lines of one lifecycle step group.
type partition struct {
	steps LifecycleSteps
	lines []string
}

// parseLifecycle parses the body of a Lifecycle section:
//
//	Examples:      optional story-level table
//	Before:        before-steps, optionally split by Scope:
//	After:         after-steps, split by Scope:, Outcome: and MetaFilter:
//
// Scope defaults to SCENARIO and Outcome to ANY. Each keyword starts a new
// partition that inherits the enclosing scope.
func (p *Parser) parseLifecycle(lines []string) (Lifecycle, error) {
	var (
		lc      Lifecycle
		mode    = lifecycleStart
		rows    []string
		current *partition
		scope   = ScopeScenario
		outcome = OutcomeAny
	)

	flush := func() {
		if current == nil {
			return
		}
		current.steps.Steps = p.findSteps(current.lines)
		if len(current.steps.Steps) > 0 {
			if mode == lifecycleBefore {
				lc.Before = append(lc.Before, current.steps)
			} else {
				lc.After = append(lc.After, current.steps)
			}
		}
		current = nil
	}
	start := func(filter string) {
		flush()
		current = &partition{steps: LifecycleSteps{Scope: scope, Outcome: outcome, MetaFilter: filter}}
		if mode == lifecycleBefore {
			current.steps.Outcome = ""
		}
	}

	for _, line := range lines {
		t := strings.TrimLeft(line, " \t")
		switch {
		case mode == lifecycleStart && p.hasKeyword(t, p.kw.ExamplesTable):
			mode = lifecycleExamples
			rows = append(rows, after(t, p.kw.ExamplesTable))
		case p.hasKeyword(t, p.kw.Before):
			flush()
			mode, scope, outcome = lifecycleBefore, ScopeScenario, OutcomeAny
			start("")
		case p.hasKeyword(t, p.kw.After):
			flush()
			mode, scope, outcome = lifecycleAfter, ScopeScenario, OutcomeAny
			start("")
		case (mode == lifecycleBefore || mode == lifecycleAfter) && p.hasKeyword(t, p.kw.Scope):
			s, err := p.parseScope(after(t, p.kw.Scope))
			if err != nil {
				return Lifecycle{}, err
			}
			scope, outcome = s, OutcomeAny
			start("")
		case mode == lifecycleAfter && p.hasKeyword(t, p.kw.Outcome):
			o, err := p.parseOutcome(after(t, p.kw.Outcome))
			if err != nil {
				return Lifecycle{}, err
			}
			outcome = o
			start("")
		case mode == lifecycleAfter && p.hasKeyword(t, p.kw.MetaFilter):
			filter := after(t, p.kw.MetaFilter)
			if current != nil && strings.TrimSpace(strings.Join(current.lines, "")) == "" {
				current.steps.MetaFilter = filter
			} else {
				start(filter)
			}
		default:
			switch mode {
			case lifecycleExamples:
				rows = append(rows, line)
			case lifecycleBefore, lifecycleAfter:
				current.lines = append(current.lines, line)
			default:
				if strings.TrimSpace(line) != "" {
					return Lifecycle{}, &ParseError{Section: sectionLifecycle, Message: "unexpected text " + quote(t) + " before Before: or After:"}
				}
			}
		}
	}
	flush()

	examples, err := p.tables.Parse(strings.Join(rows, "\n"))
	if err != nil {
		return Lifecycle{}, &ParseError{Section: sectionLifecycle, Message: "invalid examples table", Err: err}
	}
	lc.Examples = examples
	return lc, nil
}

func (p *Parser) parseScope(value string) (Scope, error) {
	switch {
	case strings.EqualFold(value, p.kw.ScopeScenario):
		return ScopeScenario, nil
	case strings.EqualFold(value, p.kw.ScopeStory):
		return ScopeStory, nil
	}
	return "", &ParseError{Section: sectionLifecycle, Message: "unknown scope " + quote(value)}
}

func (p *Parser) parseOutcome(value string) (Outcome, error) {
	switch {
	case strings.EqualFold(value, p.kw.OutcomeAny):
		return OutcomeAny, nil
	case strings.EqualFold(value, p.kw.OutcomeSuccess):
		return OutcomeSuccess, nil
	case strings.EqualFold(value, p.kw.OutcomeFailure):
		return OutcomeFailure, nil
	}
	return "", &ParseError{Section: sectionLifecycle, Message: "unknown outcome " + quote(value)}
}

func quote(s string) string {
	return "'" + s + "'"
}
