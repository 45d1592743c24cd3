package steps

import (
	"fmt"
	"regexp"
	"strings"
)

// Defaults for PatternParser.
const (
	DefaultPrefix    = "$"
	DefaultNameClass = `\w`
)

// PatternParser compiles annotated step patterns into matchers.
type PatternParser struct {
	prefix string
	marker *regexp.Regexp
}

// PatternOption configures a PatternParser.
type PatternOption func(*patternConfig)

type patternConfig struct {
	prefix    string
	nameClass string
}

// WithPrefix sets the parameter marker prefix.
func WithPrefix(prefix string) PatternOption {
	return func(c *patternConfig) {
		c.prefix = prefix
	}
}

// WithNameClass sets the regular expression character class for parameter
// name characters, e.g. `[\w-]`.
func WithNameClass(class string) PatternOption {
	return func(c *patternConfig) {
		c.nameClass = class
	}
}

// NewPatternParser creates a parser. It fails if the options do not form a
// valid marker expression.
func NewPatternParser(opts ...PatternOption) (*PatternParser, error) {
	cfg := patternConfig{prefix: DefaultPrefix, nameClass: DefaultNameClass}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.prefix == "" {
		return nil, &Error{Code: ErrCodeInvalidPattern, Message: "parameter prefix must not be empty"}
	}
	marker, err := regexp.Compile(regexp.QuoteMeta(cfg.prefix) + "(" + cfg.nameClass + "*)")
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidPattern, Message: "invalid parameter name class " + cfg.nameClass, Err: err}
	}
	return &PatternParser{prefix: cfg.prefix, marker: marker}, nil
}

// Pattern is a compiled step pattern.
type Pattern struct {
	source  string
	regex   *regexp.Regexp
	names   []string
	literal int
}

var whitespace = regexp.MustCompile(`\s+`)

// Compile turns an annotated pattern into a matcher. Every marker becomes a
// capturing group; literal segments are escaped and their whitespace made
// flexible. The whole step text must match.
func (pp *PatternParser) Compile(pattern string) (*Pattern, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, &Error{Code: ErrCodeInvalidPattern, Message: "empty pattern"}
	}
	var (
		b       strings.Builder
		names   []string
		literal int
		last    int
	)
	writeLiteral := func(s string) {
		literal += len(strings.Join(strings.Fields(s), " "))
		parts := whitespace.Split(s, -1)
		for i, p := range parts {
			if i > 0 {
				b.WriteString(`\s+`)
			}
			b.WriteString(regexp.QuoteMeta(p))
		}
	}
	b.WriteString(`(?s)^`)
	for _, loc := range pp.marker.FindAllStringSubmatchIndex(pattern, -1) {
		writeLiteral(pattern[last:loc[0]])
		b.WriteString(`(.*)`)
		names = append(names, pattern[loc[2]:loc[3]])
		last = loc[1]
	}
	writeLiteral(pattern[last:])
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidPattern, Message: fmt.Sprintf("compile %q", pattern), Pattern: pattern, Err: err}
	}
	return &Pattern{source: pattern, regex: re, names: names, literal: literal}, nil
}

// Source returns the pattern as written, without surrounding whitespace.
func (p *Pattern) Source() string {
	return p.source
}

// ParameterNames returns the marker names in declaration order.
func (p *Pattern) ParameterNames() []string {
	return append([]string(nil), p.names...)
}

// Regexp returns the compiled expression.
func (p *Pattern) Regexp() string {
	return p.regex.String()
}

// Match matches text and returns the captured arguments.
func (p *Pattern) Match(text string) (Args, bool) {
	m := p.regex.FindStringSubmatch(text)
	if m == nil {
		return Args{}, false
	}
	return Args{names: p.names, values: append([]string(nil), m[1:]...)}, true
}

// Matches reports whether text matches the pattern.
func (p *Pattern) Matches(text string) bool {
	return p.regex.MatchString(text)
}
