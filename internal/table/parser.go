package table

import (
	"fmt"
	"strings"
)

// Transformer rewrites a table body before it is parsed. It receives the
// properties in effect at the point it is applied.
type Transformer func(body string, props Properties) (string, error)

// Names of the built-in transformers.
const (
	TransformerFromLandscape           = "FROM_LANDSCAPE"
	TransformerFormatting              = "FORMATTING"
	TransformerReplacing               = "REPLACING"
	TransformerResolvingSelfReferences = "RESOLVING_SELF_REFERENCES"
)

// Parser parses table text. The zero value is not usable; call NewParser.
type Parser struct {
	defaults     Properties
	transformers map[string]Transformer
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithDefaults layers props over the built-in defaults for every table.
func WithDefaults(props Properties) ParserOption {
	return func(p *Parser) {
		p.defaults = p.defaults.Merge(props)
	}
}

// WithTransformer registers a named transformer, replacing any built-in of the same name.
func WithTransformer(name string, t Transformer) ParserOption {
	return func(p *Parser) {
		p.transformers[strings.ToUpper(name)] = t
	}
}

// NewParser creates a parser with the built-in transformers registered.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		defaults: Properties{},
		transformers: map[string]Transformer{
			TransformerFromLandscape:           fromLandscape,
			TransformerFormatting:              formatting,
			TransformerReplacing:               replacing,
			TransformerResolvingSelfReferences: resolvingSelfReferences,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse parses text with the default parser.
func Parse(text string) (*Table, error) {
	return defaultParser.Parse(text)
}

// Parse parses text into a table. Stacked property blocks are applied in
// order: each block's transformer, if any, rewrites the body using the
// properties accumulated so far. The final body is parsed with the merged
// properties of all blocks.
func (p *Parser) Parse(text string) (*Table, error) {
	if strings.TrimSpace(text) == "" {
		return &Table{properties: p.defaults.Merge(nil)}, nil
	}
	blocks, body, err := splitPropertyBlocks(text)
	if err != nil {
		return nil, err
	}
	props := p.defaults.Merge(nil)
	for _, block := range blocks {
		props = props.Merge(block)
		name := block.Transformer()
		if name == "" {
			continue
		}
		t, ok := p.transformers[strings.ToUpper(name)]
		if !ok {
			return nil, &Error{Code: ErrCodeUnknownTransformer, Message: fmt.Sprintf("no transformer named %q", name)}
		}
		body, err = t(body, props)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", name, err)
		}
	}
	return build(body, props), nil
}

func build(body string, props Properties) *Table {
	headers, rows := rawRows(body, props)
	t := &Table{properties: props, headers: headers}
	for _, r := range rows {
		t.rows = append(t.rows, normalizeRow(r, len(headers), props.NullPlaceholder()))
	}
	return t
}

// fromLandscape pivots a table whose first column holds the headers.
func fromLandscape(body string, props Properties) (string, error) {
	var headers []string
	var columns [][]string
	width := 0
	ignorable := props.IgnorableSeparator()
	for _, line := range splitLines(body) {
		line = strings.TrimSpace(line)
		if line == "" || (ignorable != "" && strings.HasPrefix(line, ignorable)) {
			continue
		}
		cells := splitRow(line, props.HeaderSeparator(), props)
		if len(cells) == 0 {
			continue
		}
		headers = append(headers, cells[0])
		columns = append(columns, cells[1:])
		width = max(width, len(cells)-1)
	}
	rows := make([][]string, width)
	for r := range rows {
		rows[r] = make([]string, len(headers))
		for c := range headers {
			if r < len(columns[c]) {
				rows[r][c] = columns[c][r]
			}
		}
	}
	return format(headers, rows, props.HeaderSeparator(), props.ValueSeparator()), nil
}

// formatting pads every cell to its column's widest value.
func formatting(body string, props Properties) (string, error) {
	headers, rows := rawRows(body, props)
	widths := make([]int, len(headers))
	for c, h := range headers {
		widths[c] = len([]rune(h))
	}
	for _, r := range rows {
		for c := 0; c < len(r) && c < len(widths); c++ {
			widths[c] = max(widths[c], len([]rune(r[c])))
		}
	}
	pad := func(cells []string) []string {
		out := make([]string, len(widths))
		for c := range widths {
			v := ""
			if c < len(cells) {
				v = cells[c]
			}
			out[c] = v + strings.Repeat(" ", widths[c]-len([]rune(v)))
		}
		return out
	}
	padded := make([][]string, len(rows))
	for i, r := range rows {
		padded[i] = pad(r)
	}
	return format(pad(headers), padded, props.HeaderSeparator(), props.ValueSeparator()), nil
}

// replacing substitutes every occurrence of the "replacing" property with
// the "replacement" property.
func replacing(body string, props Properties) (string, error) {
	from := props.Get("replacing")
	if from == "" {
		return "", invalidProperties("REPLACING transformer requires a non-empty 'replacing' property")
	}
	return strings.ReplaceAll(body, from, props.Get("replacement")), nil
}

// resolvingSelfReferences replaces <column> references in each row with the
// referenced column's value from the same row.
func resolvingSelfReferences(body string, props Properties) (string, error) {
	t := build(body, props)
	rows := make([][]string, len(t.rows))
	for i := range t.rows {
		resolved, err := ResolveReferences(t.rowMap(i), DefaultNameDelimiterLeft, DefaultNameDelimiterRight)
		if err != nil {
			return "", fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = make([]string, len(t.headers))
		for c, h := range t.headers {
			if t.rows[i][c].null {
				rows[i][c] = props.NullPlaceholder()
				continue
			}
			rows[i][c] = resolved[h]
		}
	}
	return format(t.headers, rows, props.HeaderSeparator(), props.ValueSeparator()), nil
}
