package steps

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/storyline/internal/keywords"
)

// Func is an executable step implementation. It should return promptly once
// ctx is cancelled.
type Func func(ctx context.Context, args Args) error

// Candidate is a step implementation registered under a pattern.
type Candidate struct {
	// Type is the step type the candidate answers to. Any matches all types.
	Type Type

	// Pattern is the annotated pattern text.
	Pattern string

	// Priority orders matching candidates. Higher wins.
	Priority int

	// Source names the step collection that provided the candidate.
	Source string

	// Run executes the step.
	Run Func

	compiled *Pattern
	order    int
}

// Compiled returns the compiled pattern. Only set on registered candidates.
func (c *Candidate) Compiled() *Pattern {
	return c.compiled
}

// less orders candidates by priority, then fewer parameters, then longer
// literal text, then registration order.
func (c *Candidate) less(o *Candidate) bool {
	if c.Priority != o.Priority {
		return c.Priority > o.Priority
	}
	if a, b := len(c.compiled.names), len(o.compiled.names); a != b {
		return a < b
	}
	if c.compiled.literal != o.compiled.literal {
		return c.compiled.literal > o.compiled.literal
	}
	return c.order < o.order
}

// Registry holds step candidates. It is safe for concurrent use and is
// treated as read-only while stories run.
type Registry struct {
	mu         sync.RWMutex
	kw         keywords.Keywords
	patterns   *PatternParser
	candidates []*Candidate
	byKey      map[string]*Candidate
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryKeywords sets the keyword table used to classify step lines.
func WithRegistryKeywords(kw keywords.Keywords) RegistryOption {
	return func(r *Registry) {
		r.kw = kw
	}
}

// WithPatternParser sets the pattern compiler.
func WithPatternParser(pp *PatternParser) RegistryOption {
	return func(r *Registry) {
		r.patterns = pp
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	pp, _ := NewPatternParser()
	r := &Registry{
		kw:       keywords.English(),
		patterns: pp,
		byKey:    map[string]*Candidate{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func candidateKey(t Type, pattern string) string {
	return string(t) + "\x00" + pattern
}

// Register compiles and adds candidates. The call is all or nothing: if any
// candidate has an invalid pattern or duplicates an existing one (same type
// and pattern text, from any source), nothing is added.
func (r *Registry) Register(candidates ...Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := map[string]*Candidate{}
	var added []*Candidate
	for i := range candidates {
		c := candidates[i]
		compiled, err := r.patterns.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("register %s step %q: %w", c.Type, c.Pattern, err)
		}
		if c.Type == "" {
			c.Type = Any
		}
		c.compiled = compiled
		key := candidateKey(c.Type, compiled.Source())
		existing, ok := r.byKey[key]
		if !ok {
			existing, ok = pending[key]
		}
		if ok {
			return &Error{
				Code:    ErrCodeDuplicateCandidate,
				Message: fmt.Sprintf("%s step %q is registered twice", c.Type, compiled.Source()),
				Pattern: compiled.Source(),
				Sources: []string{existing.Source, c.Source},
			}
		}
		c.order = len(r.candidates) + len(added)
		pending[key] = &c
		added = append(added, &c)
	}
	for _, c := range added {
		r.byKey[candidateKey(c.Type, c.compiled.Source())] = c
	}
	r.candidates = append(r.candidates, added...)
	return nil
}

// Candidates returns the registered candidates in registration order.
func (r *Registry) Candidates() []*Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Candidate(nil), r.candidates...)
}

// Keywords returns the keyword table used for classification.
func (r *Registry) Keywords() keywords.Keywords {
	return r.kw
}

// Resolution is the outcome of resolving one step line.
type Resolution struct {
	// Text is the step line as given.
	Text string

	// Type is the effective type, with And replaced by the preceding type.
	Type Type

	// Candidate is the chosen candidate, or nil when pending or ignorable.
	Candidate *Candidate

	// Args holds the captured values of the chosen candidate.
	Args Args

	// Alternatives counts other candidates that also matched.
	Alternatives int
}

// Pending reports whether no candidate matched.
func (r Resolution) Pending() bool {
	return r.Candidate == nil && r.Type != Ignorable
}

// Ignorable reports whether the line is a comment.
func (r Resolution) Ignorable() bool {
	return r.Type == Ignorable
}

// Resolve binds a step line to the best matching candidate. previous is
// the effective type of the step before it and is used for And steps.
func (r *Registry) Resolve(text string, previous Type) Resolution {
	typ, stripped := Classify(text, r.kw)
	switch typ {
	case Ignorable:
		return Resolution{Text: text, Type: Ignorable}
	case And:
		typ = previous
		if typ == "" || typ == And || typ == Ignorable {
			typ = Given
		}
	case "":
		typ = previous
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Candidate
	var args []Args
	for _, c := range r.candidates {
		if c.Type != typ && c.Type != Any {
			continue
		}
		if a, ok := c.compiled.Match(stripped); ok {
			matches = append(matches, c)
			args = append(args, a)
		}
	}
	res := Resolution{Text: text, Type: typ}
	if len(matches) == 0 {
		return res
	}
	idx := make([]int, len(matches))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return matches[idx[a]].less(matches[idx[b]]) })
	res.Candidate = matches[idx[0]]
	res.Args = args[idx[0]]
	res.Alternatives = len(matches) - 1
	return res
}

// ResolveAll resolves step lines in order, carrying the effective type
// forward for And steps.
func (r *Registry) ResolveAll(lines []string) []Resolution {
	out := make([]Resolution, 0, len(lines))
	var previous Type
	for _, line := range lines {
		res := r.Resolve(line, previous)
		if res.Type != Ignorable {
			previous = res.Type
		}
		out = append(out, res)
	}
	return out
}
