package table

import (
	"sort"
	"strings"
)

// Default delimiters for named parameter references.
const (
	DefaultNameDelimiterLeft  = "<"
	DefaultNameDelimiterRight = ">"
)

// ResolveReferences replaces left+name+right references inside each value
// with the resolved value of the referenced name. References to unknown
// names are left as written. Resolution is depth-first; a chain that
// returns to a name already being resolved fails with a circular reference
// error naming the chain.
func ResolveReferences(values map[string]string, left, right string) (map[string]string, error) {
	r := &resolver{
		values:   values,
		left:     left,
		right:    right,
		resolved: make(map[string]string, len(values)),
	}
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if _, err := r.resolve(n, nil); err != nil {
			return nil, err
		}
	}
	return r.resolved, nil
}

type resolver struct {
	values   map[string]string
	left     string
	right    string
	resolved map[string]string
}

func (r *resolver) resolve(name string, path []string) (string, error) {
	if v, ok := r.resolved[name]; ok {
		return v, nil
	}
	for i, p := range path {
		if p == name {
			chain := append(append([]string(nil), path[i:]...), name)
			return "", circularReference(chain)
		}
	}
	path = append(path, name)

	raw := r.values[name]
	var b strings.Builder
	rest := raw
	for {
		start := strings.Index(rest, r.left)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(r.left):], r.right)
		if end < 0 {
			break
		}
		ref := rest[start+len(r.left) : start+len(r.left)+end]
		b.WriteString(rest[:start])
		if _, known := r.values[ref]; known {
			v, err := r.resolve(ref, path)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		} else {
			b.WriteString(r.left + ref + r.right)
		}
		rest = rest[start+len(r.left)+end+len(r.right):]
	}
	b.WriteString(rest)

	out := b.String()
	r.resolved[name] = out
	return out, nil
}

// ReplaceDelimitedNames substitutes left+name+right occurrences in text with
// the matching values. Unknown names are left untouched.
func ReplaceDelimitedNames(text string, values map[string]string, left, right string) string {
	if len(values) == 0 || !strings.Contains(text, left) {
		return text
	}
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	pairs := make([]string, 0, 2*len(names))
	for _, n := range names {
		pairs = append(pairs, left+n+right, values[n])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
