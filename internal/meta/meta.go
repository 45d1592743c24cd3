package meta

import (
	"sort"
	"strings"

	"github.com/roach88/storyline/internal/keywords"
)

// Meta is an immutable set of name to value properties. Flag-only
// properties have an empty value.
type Meta struct {
	props map[string]string
}

// Empty is the meta with no properties.
var Empty = Meta{}

// New builds a Meta from a map. The map is copied.
func New(props map[string]string) Meta {
	m := Meta{props: make(map[string]string, len(props))}
	for k, v := range props {
		m.props[k] = v
	}
	return m
}

// Parse reads "@name value" properties from text. Everything from the
// ignorable marker to the end of a line is dropped first. A value runs until
// the next property marker or the end of the line.
func Parse(text string, kw keywords.Keywords) Meta {
	props := map[string]string{}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if i := strings.Index(line, kw.Ignorable); i >= 0 {
			line = line[:i]
		}
		for _, token := range strings.Split(line, kw.MetaProperty) {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			name, value := token, ""
			if i := strings.IndexAny(token, " \t"); i >= 0 {
				name, value = token[:i], strings.TrimSpace(token[i+1:])
			}
			props[name] = value
		}
	}
	return Meta{props: props}
}

// Names returns the property names in sorted order.
func (m Meta) Names() []string {
	names := make([]string, 0, len(m.props))
	for n := range m.props {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the property is set.
func (m Meta) Has(name string) bool {
	_, ok := m.props[name]
	return ok
}

// Get returns the value of a property, or "" when unset.
func (m Meta) Get(name string) string {
	return m.props[name]
}

// Lookup returns the value of a property and whether it is set.
func (m Meta) Lookup(name string) (string, bool) {
	v, ok := m.props[name]
	return v, ok
}

// Len returns the number of properties.
func (m Meta) Len() int {
	return len(m.props)
}

// IsEmpty reports whether there are no properties.
func (m Meta) IsEmpty() bool {
	return len(m.props) == 0
}

// Properties returns a copy of the properties.
func (m Meta) Properties() map[string]string {
	out := make(map[string]string, len(m.props))
	for k, v := range m.props {
		out[k] = v
	}
	return out
}

// InheritFrom returns m extended with the parent's properties that m does
// not set. Values already in m always win.
func (m Meta) InheritFrom(parent Meta) Meta {
	out := make(map[string]string, len(m.props)+len(parent.props))
	for k, v := range parent.props {
		out[k] = v
	}
	for k, v := range m.props {
		out[k] = v
	}
	return Meta{props: out}
}

// String renders the properties as "@name value" pairs in name order.
func (m Meta) String() string {
	parts := make([]string, 0, len(m.props))
	for _, n := range m.Names() {
		if v := m.props[n]; v != "" {
			parts = append(parts, "@"+n+" "+v)
		} else {
			parts = append(parts, "@"+n)
		}
	}
	return strings.Join(parts, " ")
}
