package meta

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

// Matcher decides whether a meta set passes a filter.
type Matcher interface {
	Match(m Meta) (bool, error)
}

// MatcherFactory compiles the expression that follows a filter prefix.
type MatcherFactory func(expression string) (Matcher, error)

// Filter allows or denies meta sets. A Filter holds no mutable state and is
// safe for concurrent use.
type Filter struct {
	text    string
	matcher Matcher
}

// FilterOption configures NewFilter.
type FilterOption func(*filterConfig)

type filterConfig struct {
	factories map[string]MatcherFactory
}

// prefixes returns the registered prefixes, longest first.
func (c *filterConfig) prefixes() []string {
	out := make([]string, 0, len(c.factories))
	for p := range c.factories {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b string) int {
		if n := cmp.Compare(len(b), len(a)); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
	return out
}

// WithMatcher registers a factory for filters starting with prefix, such as "js:".
func WithMatcher(prefix string, factory MatcherFactory) FilterOption {
	return func(c *filterConfig) {
		c.factories[prefix] = factory
	}
}

// Expression filter prefixes understood by default.
const (
	PrefixGroovy = "groovy:"
	PrefixJS     = "js:"
)

// NewFilter compiles a filter string. An empty string allows everything.
func NewFilter(text string, opts ...FilterOption) (*Filter, error) {
	cfg := &filterConfig{factories: map[string]MatcherFactory{
		PrefixGroovy: NewExpressionMatcher,
		PrefixJS:     NewExpressionMatcher,
	}}
	for _, opt := range opts {
		opt(cfg)
	}

	trimmed := strings.TrimSpace(text)
	for _, prefix := range cfg.prefixes() {
		if factory := cfg.factories[prefix]; strings.HasPrefix(trimmed, prefix) {
			m, err := factory(strings.TrimSpace(trimmed[len(prefix):]))
			if err != nil {
				return nil, &Error{Code: ErrCodeInvalidFilter, Filter: text, Message: "compile expression", Err: err}
			}
			return &Filter{text: text, matcher: m}, nil
		}
	}
	return &Filter{text: text, matcher: parseClauses(trimmed)}, nil
}

// MustFilter is like NewFilter but panics on error. For tests and constants.
func MustFilter(text string, opts ...FilterOption) *Filter {
	f, err := NewFilter(text, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Allow reports whether m passes the filter. Evaluation errors deny.
func (f *Filter) Allow(m Meta) bool {
	ok, err := f.Check(m)
	return err == nil && ok
}

// Check reports whether m passes the filter, surfacing evaluation errors.
func (f *Filter) Check(m Meta) (bool, error) {
	if f == nil || f.matcher == nil {
		return true, nil
	}
	ok, err := f.matcher.Match(m)
	if err != nil {
		return false, &Error{Code: ErrCodeExpressionFailed, Filter: f.text, Message: "evaluate", Err: err}
	}
	return ok, nil
}

// String returns the filter text as given.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.text
}

// Filters is a conjunction: every filter must allow.
type Filters []*Filter

// Allow reports whether every filter allows m.
func (fs Filters) Allow(m Meta) bool {
	for _, f := range fs {
		if !f.Allow(m) {
			return false
		}
	}
	return true
}

// clause is one "+name value" or "-name value" entry.
type clause struct {
	name  string
	value string
	glob  *regexp.Regexp
}

// ClauseMatcher is the default include/exclude matcher.
//
// With only includes, meta passes when any include matches. With only
// excludes, meta passes when no exclude matches. With both, meta passes when
// either of those single-sided rules holds. With neither, everything passes.
type ClauseMatcher struct {
	include []clause
	exclude []clause
}

func parseClauses(text string) *ClauseMatcher {
	m := &ClauseMatcher{}
	var current *[]clause
	var words []string
	flush := func() {
		if current == nil || len(words) == 0 {
			return
		}
		*current = append(*current, newClause(words[0], strings.Join(words[1:], " ")))
	}
	for _, token := range strings.Fields(text) {
		switch {
		case strings.HasPrefix(token, "+"):
			flush()
			current, words = &m.include, []string{token[1:]}
		case strings.HasPrefix(token, "-"):
			flush()
			current, words = &m.exclude, []string{token[1:]}
		default:
			words = append(words, token)
		}
	}
	flush()
	return m
}

func newClause(name, value string) clause {
	c := clause{name: name, value: value}
	if strings.Contains(value, "*") {
		parts := strings.Split(value, "*")
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		c.glob = regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
	}
	return c
}

// Match implements Matcher.
func (c *ClauseMatcher) Match(m Meta) (bool, error) {
	hasInclude, hasExclude := len(c.include) > 0, len(c.exclude) > 0
	switch {
	case hasInclude && !hasExclude:
		return anyClause(c.include, m), nil
	case !hasInclude && hasExclude:
		return !anyClause(c.exclude, m), nil
	case hasInclude && hasExclude:
		return anyClause(c.include, m) || !anyClause(c.exclude, m), nil
	}
	return true, nil
}

func anyClause(clauses []clause, m Meta) bool {
	for _, c := range clauses {
		value, ok := m.Lookup(c.name)
		if !ok {
			continue
		}
		if clauseMatches(c, value) {
			return true
		}
	}
	return false
}

func clauseMatches(c clause, value string) bool {
	switch {
	case strings.TrimSpace(value) == "":
		return true
	case c.glob != nil:
		return c.glob.MatchString(value)
	}
	return c.value == value
}
