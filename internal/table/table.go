package table

import (
	"sort"
	"strings"
)

// Table is a parsed examples table. Tables are immutable; the With* methods
// return modified copies.
type Table struct {
	properties Properties
	headers    []string
	rows       [][]cell
}

type cell struct {
	value string
	null  bool
}

// Empty returns a table with no headers and no rows.
func Empty() *Table {
	return &Table{properties: Properties{}}
}

// New builds a table from headers and string rows using default properties.
// Rows are padded or truncated to the header length.
func New(headers []string, rows [][]string) *Table {
	t := &Table{properties: Properties{}, headers: append([]string(nil), headers...)}
	for _, r := range rows {
		t.rows = append(t.rows, normalizeRow(r, len(headers), ""))
	}
	return t
}

// Headers returns the header names in declaration order.
func (t *Table) Headers() []string {
	return append([]string(nil), t.headers...)
}

// Properties returns the effective properties the table was parsed with.
func (t *Table) Properties() Properties {
	return t.properties.Merge(nil)
}

// RowCount returns the number of value rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// IsEmpty reports whether the table has no value rows.
func (t *Table) IsEmpty() bool {
	return len(t.rows) == 0
}

// Row returns row i as a header to value map. Null cells are omitted.
// When a header repeats, the rightmost cell wins.
func (t *Table) Row(i int) (map[string]string, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, rowNotFound(i, len(t.rows))
	}
	return t.rowMap(i), nil
}

func (t *Table) rowMap(i int) map[string]string {
	m := make(map[string]string, len(t.headers))
	for c, h := range t.headers {
		if !t.rows[i][c].null {
			m[h] = t.rows[i][c].value
		}
	}
	return m
}

// Rows returns every row as a header to value map.
func (t *Table) Rows() []map[string]string {
	out := make([]map[string]string, len(t.rows))
	for i := range t.rows {
		out[i] = t.rowMap(i)
	}
	return out
}

// Values returns the cells row by row in header order. Null cells read as "".
func (t *Table) Values() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = make([]string, len(r))
		for c, v := range r {
			out[i][c] = v.value
		}
	}
	return out
}

// RowAsParameters returns row i as typed parameters.
func (t *Table) RowAsParameters(i int) (*Parameters, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, rowNotFound(i, len(t.rows))
	}
	return t.parameters(i), nil
}

// RowsAsParameters returns every row as typed parameters.
func (t *Table) RowsAsParameters() []*Parameters {
	out := make([]*Parameters, len(t.rows))
	for i := range t.rows {
		out[i] = t.parameters(i)
	}
	return out
}

func (t *Table) parameters(i int) *Parameters {
	p := &Parameters{values: make(map[string]string), nulls: make(map[string]bool)}
	for c, h := range t.headers {
		if _, seen := p.values[h]; !seen && !p.nulls[h] {
			p.names = append(p.names, h)
		}
		if t.rows[i][c].null {
			p.nulls[h] = true
			delete(p.values, h)
			continue
		}
		delete(p.nulls, h)
		p.values[h] = t.rows[i][c].value
	}
	return p
}

// ColumnIndex returns the position of the named header.
func (t *Table) ColumnIndex(name string) (int, error) {
	idx, count := -1, 0
	for i, h := range t.headers {
		if h == name {
			if idx < 0 {
				idx = i
			}
			count++
		}
	}
	switch {
	case count == 0:
		return -1, columnNotFound(name)
	case count > 1:
		return -1, nonDistinctColumn(name, count)
	}
	return idx, nil
}

// Column returns the values of the named column. Null cells read as "".
func (t *Table) Column(name string) ([]string, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[idx].value
	}
	return out, nil
}

// WithRowValues returns a copy with the given values written into row i.
// Unknown names are appended as new headers in sorted order.
func (t *Table) WithRowValues(i int, values map[string]string) (*Table, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, rowNotFound(i, len(t.rows))
	}
	out := t.withHeaders(newNames(t.headers, values))
	for name, v := range values {
		for c, h := range out.headers {
			if h == name {
				out.rows[i][c] = cell{value: v}
			}
		}
	}
	return out, nil
}

// WithRows returns a copy whose rows are replaced by the given maps.
// Headers are kept in order; names not yet present are appended sorted.
func (t *Table) WithRows(rows []map[string]string) *Table {
	var extra []string
	seen := map[string]bool{}
	for _, r := range rows {
		for _, n := range newNames(t.headers, r) {
			if !seen[n] {
				seen[n] = true
				extra = append(extra, n)
			}
		}
	}
	sort.Strings(extra)
	out := &Table{properties: t.properties, headers: append(append([]string(nil), t.headers...), extra...)}
	for _, r := range rows {
		row := make([]cell, len(out.headers))
		for c, h := range out.headers {
			if v, ok := r[h]; ok {
				row[c] = cell{value: v}
			} else {
				row[c] = cell{null: true}
			}
		}
		out.rows = append(out.rows, row)
	}
	return out
}

func (t *Table) withHeaders(extra []string) *Table {
	out := &Table{properties: t.properties, headers: append(append([]string(nil), t.headers...), extra...)}
	for _, r := range t.rows {
		row := make([]cell, len(out.headers))
		copy(row, r)
		out.rows = append(out.rows, row)
	}
	return out
}

func newNames(headers []string, values map[string]string) []string {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	var names []string
	for n := range values {
		if !known[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Render writes the table back to delimited text using its separators.
// Null cells render as the null placeholder. Properties are not rendered.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}
	placeholder := t.properties.NullPlaceholder()
	rows := make([][]string, len(t.rows))
	for i, r := range t.rows {
		rows[i] = make([]string, len(r))
		for c, v := range r {
			if v.null {
				rows[i][c] = placeholder
			} else {
				rows[i][c] = v.value
			}
		}
	}
	return format(t.headers, rows, t.properties.HeaderSeparator(), t.properties.ValueSeparator())
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	return t.Render()
}

func format(headers []string, rows [][]string, headerSep, valueSep string) string {
	var b strings.Builder
	writeLine(&b, headers, headerSep)
	for _, r := range rows {
		writeLine(&b, r, valueSep)
	}
	return b.String()
}

func writeLine(b *strings.Builder, cells []string, sep string) {
	b.WriteString(sep)
	for _, c := range cells {
		b.WriteString(c)
		b.WriteString(sep)
	}
	b.WriteByte('\n')
}

// rawRows splits a table body into header and value cells without padding.
// Empty and ignorable lines are skipped.
func rawRows(body string, props Properties) (headers []string, rows [][]string) {
	ignorable := props.IgnorableSeparator()
	for _, line := range splitLines(body) {
		line = strings.TrimSpace(line)
		if line == "" || (ignorable != "" && strings.HasPrefix(line, ignorable)) {
			continue
		}
		if headers == nil {
			headers = splitRow(line, props.HeaderSeparator(), props)
			if headers == nil {
				headers = []string{}
			}
			continue
		}
		rows = append(rows, splitRow(line, props.ValueSeparator(), props))
	}
	return headers, rows
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// splitRow splits one line into cells. Tokens between separators are kept,
// including empty ones; the empty tokens produced by leading and trailing
// separators are dropped. A comment that follows the last separator is removed
// and the text before it is kept.
func splitRow(line, sep string, props Properties) []string {
	line = stripComment(line, sep, props.CommentSeparator())
	tokens := strings.Split(line, sep)
	if len(tokens) > 0 && strings.TrimSpace(tokens[0]) == "" {
		tokens = tokens[1:]
	}
	if len(tokens) > 0 && strings.TrimSpace(tokens[len(tokens)-1]) == "" && strings.HasSuffix(strings.TrimSpace(line), sep) {
		tokens = tokens[:len(tokens)-1]
	}
	if props.Trim() {
		for i := range tokens {
			tokens[i] = strings.TrimSpace(tokens[i])
		}
	}
	return tokens
}

func stripComment(line, sep, comment string) string {
	if comment == "" {
		return line
	}
	last := strings.LastIndex(line, sep)
	if last < 0 {
		return line
	}
	tail := line[last+len(sep):]
	if i := strings.Index(tail, comment); i >= 0 {
		return strings.TrimRight(line[:last+len(sep)]+tail[:i], " \t")
	}
	return line
}

func normalizeRow(values []string, width int, nullPlaceholder string) []cell {
	row := make([]cell, width)
	for i := 0; i < width && i < len(values); i++ {
		if nullPlaceholder != "" && values[i] == nullPlaceholder {
			row[i] = cell{null: true}
			continue
		}
		row[i] = cell{value: values[i]}
	}
	return row
}
