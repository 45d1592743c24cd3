package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Parameters is a typed view over one table row.
type Parameters struct {
	names  []string
	values map[string]string
	nulls  map[string]bool
}

// NewParameters builds parameters from a plain map. Names are kept in the
// given order; names missing from values are treated as null.
func NewParameters(names []string, values map[string]string) *Parameters {
	p := &Parameters{values: make(map[string]string, len(values)), nulls: map[string]bool{}}
	for _, n := range names {
		p.names = append(p.names, n)
		if v, ok := values[n]; ok {
			p.values[n] = v
		} else {
			p.nulls[n] = true
		}
	}
	return p
}

// Names returns the column names in order.
func (p *Parameters) Names() []string {
	return append([]string(nil), p.names...)
}

// Has reports whether the row has a column with the given name, null or not.
func (p *Parameters) Has(name string) bool {
	_, ok := p.values[name]
	return ok || p.nulls[name]
}

// Value returns the value of name and whether it is present and non-null.
func (p *Parameters) Value(name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

// String returns the value of name. A null value reads as "".
func (p *Parameters) String(name string) (string, error) {
	if !p.Has(name) {
		return "", columnNotFound(name)
	}
	return p.values[name], nil
}

// StringOr returns the value of name, or def when it is missing or null.
func (p *Parameters) StringOr(name, def string) string {
	if v, ok := p.values[name]; ok {
		return v
	}
	return def
}

// Int returns the value of name as an int.
func (p *Parameters) Int(name string) (int, error) {
	s, err := p.String(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, conversion(name, s, "int", err)
	}
	return n, nil
}

// Float returns the value of name as a float64.
func (p *Parameters) Float(name string) (float64, error) {
	s, err := p.String(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, conversion(name, s, "float", err)
	}
	return f, nil
}

// Bool returns the value of name as a bool.
func (p *Parameters) Bool(name string) (bool, error) {
	s, err := p.String(name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, conversion(name, s, "bool", err)
	}
	return b, nil
}

// Map returns the non-null values as a map.
func (p *Parameters) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

func conversion(name, value, kind string, err error) *Error {
	return &Error{
		Code:    ErrCodeValueConversion,
		Message: fmt.Sprintf("column %q value %q is not a valid %s", name, value, kind),
		Err:     err,
	}
}
