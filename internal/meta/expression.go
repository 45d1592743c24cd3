package meta

import (
	"regexp"

	"github.com/dop251/goja"
)

// ExpressionMatcher evaluates a boolean JavaScript expression against meta.
// Meta names are exposed as globals: flag-only names are true, names with a
// value hold that string, and any other identifier in the expression is
// false. Supports parentheses and the usual &&, ||, !, == and != operators.
type ExpressionMatcher struct {
	source      string
	program     *goja.Program
	identifiers []string
}

var (
	identifierPattern = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)
	stringLiteral     = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`)
)

var reserved = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true,
	"typeof": true, "instanceof": true, "in": true, "new": true, "void": true,
	"NaN": true, "Infinity": true,
}

// NewExpressionMatcher compiles expr once; each Match runs it in a fresh runtime.
func NewExpressionMatcher(expr string) (Matcher, error) {
	program, err := goja.Compile("filter", "("+expr+")", true)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var idents []string
	for _, id := range identifierPattern.FindAllString(stringLiteral.ReplaceAllString(expr, "''"), -1) {
		if reserved[id] || seen[id] {
			continue
		}
		seen[id] = true
		idents = append(idents, id)
	}
	return &ExpressionMatcher{source: expr, program: program, identifiers: idents}, nil
}

// Match implements Matcher.
func (e *ExpressionMatcher) Match(m Meta) (bool, error) {
	vm := goja.New()
	for _, id := range e.identifiers {
		if err := vm.Set(id, false); err != nil {
			return false, err
		}
	}
	for _, name := range m.Names() {
		if !identifierPattern.MatchString(name) || identifierPattern.FindString(name) != name {
			continue
		}
		var v any = m.Get(name)
		if m.Get(name) == "" {
			v = true
		}
		if err := vm.Set(name, v); err != nil {
			return false, err
		}
	}
	result, err := vm.RunProgram(e.program)
	if err != nil {
		return false, err
	}
	return result.ToBoolean(), nil
}

// String returns the expression source.
func (e *ExpressionMatcher) String() string {
	return e.source
}
