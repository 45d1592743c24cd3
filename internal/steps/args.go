package steps

import (
	"strconv"
	"strings"

	"github.com/roach88/storyline/internal/table"
)

// Args are the values captured from a step's text, in marker order.
type Args struct {
	names  []string
	values []string
}

// NewArgs builds Args from parallel name and value lists.
func NewArgs(names, values []string) Args {
	return Args{names: append([]string(nil), names...), values: append([]string(nil), values...)}
}

// Len returns the number of captured values.
func (a Args) Len() int {
	return len(a.values)
}

// Values returns the captured values.
func (a Args) Values() []string {
	return append([]string(nil), a.values...)
}

// Names returns the marker names.
func (a Args) Names() []string {
	return append([]string(nil), a.names...)
}

// At returns the value bound to marker i, or "" when out of range.
func (a Args) At(i int) string {
	if i < 0 || i >= len(a.values) {
		return ""
	}
	return a.values[i]
}

// Get returns the value bound to the first marker called name.
func (a Args) Get(name string) (string, bool) {
	for i, n := range a.names {
		if n == name && i < len(a.values) {
			return a.values[i], true
		}
	}
	return "", false
}

// String returns the named value or an error if the marker does not exist.
func (a Args) String(name string) (string, error) {
	v, ok := a.Get(name)
	if !ok {
		return "", &Error{Code: ErrCodeInvalidArgument, Message: "no parameter named " + name}
	}
	return v, nil
}

// Int returns the named value as an int.
func (a Args) Int(name string) (int, error) {
	v, err := a.String(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &Error{Code: ErrCodeInvalidArgument, Message: "parameter " + name + " is not an int", Err: err}
	}
	return n, nil
}

// Table parses the named value as an examples table.
func (a Args) Table(name string) (*table.Table, error) {
	v, err := a.String(name)
	if err != nil {
		return nil, err
	}
	return table.Parse(v)
}
