package table

import (
	"sort"
	"strconv"
	"strings"
)

// Property keys understood by the parser.
const (
	PropHeaderSeparator    = "headerSeparator"
	PropValueSeparator     = "valueSeparator"
	PropIgnorableSeparator = "ignorableSeparator"
	PropCommentSeparator   = "commentSeparator"
	PropTrim               = "trim"
	PropNullPlaceholder    = "nullPlaceholder"
	PropMetaByRow          = "metaByRow"
	PropTransformer        = "transformer"
)

// Default separators.
const (
	DefaultHeaderSeparator    = "|"
	DefaultValueSeparator     = "|"
	DefaultIgnorableSeparator = "|--"
	DefaultCommentSeparator   = "#"
)

// Property value decorators, written as a suffix on the key: {replacement|UPPERCASE=x}.
const (
	DecoratorUppercase = "UPPERCASE"
	DecoratorLowercase = "LOWERCASE"
	DecoratorTrim      = "TRIM"
	DecoratorVerbatim  = "VERBATIM"
)

// Properties holds table properties. Unset keys fall back to defaults.
// A nil Properties is valid and reports only defaults.
type Properties map[string]string

// Get returns the raw value of key, or "" if unset.
func (p Properties) Get(key string) string {
	return p[key]
}

func (p Properties) getOr(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// HeaderSeparator returns the separator used to split the header row.
func (p Properties) HeaderSeparator() string {
	return p.getOr(PropHeaderSeparator, DefaultHeaderSeparator)
}

// ValueSeparator returns the separator used to split value rows.
func (p Properties) ValueSeparator() string {
	return p.getOr(PropValueSeparator, DefaultValueSeparator)
}

// IgnorableSeparator returns the prefix that marks a row as ignorable.
func (p Properties) IgnorableSeparator() string {
	return p.getOr(PropIgnorableSeparator, DefaultIgnorableSeparator)
}

// CommentSeparator returns the marker that starts a trailing row comment.
func (p Properties) CommentSeparator() string {
	return p.getOr(PropCommentSeparator, DefaultCommentSeparator)
}

// Trim reports whether cell values are trimmed. Defaults to true.
func (p Properties) Trim() bool {
	return p.boolOr(PropTrim, true)
}

// NullPlaceholder returns the cell text that denotes an absent value.
// An empty placeholder disables null mapping.
func (p Properties) NullPlaceholder() string {
	return p[PropNullPlaceholder]
}

// MetaByRow reports whether each row may carry its own meta.
func (p Properties) MetaByRow() bool {
	return p.boolOr(PropMetaByRow, false)
}

// Transformer returns the transformer named by this property set.
func (p Properties) Transformer() string {
	return p[PropTransformer]
}

func (p Properties) boolOr(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Merge returns a new property set with the values of other layered over p.
func (p Properties) Merge(other Properties) Properties {
	out := make(Properties, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the set keys in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// splitPropertyBlocks strips the stacked {..} blocks from the front of text
// and returns them in declaration order together with the remaining body.
func splitPropertyBlocks(text string) ([]Properties, string, error) {
	var blocks []Properties
	rest := strings.TrimLeft(text, " \t\r\n")
	for strings.HasPrefix(rest, "{") {
		end := closingBrace(rest)
		if end < 0 {
			return nil, "", invalidProperties("unterminated property block %q", firstLine(rest))
		}
		props, err := parsePropertyBlock(rest[1:end])
		if err != nil {
			return nil, "", err
		}
		blocks = append(blocks, props)
		rest = strings.TrimLeft(rest[end+1:], " \t\r\n")
	}
	return blocks, rest, nil
}

// closingBrace returns the index of the first unescaped '}' in s, or -1.
func closingBrace(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '}':
			return i
		}
	}
	return -1
}

func parsePropertyBlock(body string) (Properties, error) {
	props := Properties{}
	for _, entry := range splitUnescaped(body, ',') {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			return nil, invalidProperties("property %q has no value", strings.TrimSpace(entry))
		}
		key, decorators := splitDecorators(strings.TrimSpace(entry[:eq]))
		if key == "" {
			return nil, invalidProperties("property %q has no name", strings.TrimSpace(entry))
		}
		value, err := decorate(unescape(entry[eq+1:]), decorators)
		if err != nil {
			return nil, err
		}
		props[key] = value
	}
	return props, nil
}

func splitDecorators(key string) (string, []string) {
	parts := strings.Split(key, "|")
	name := strings.TrimSpace(parts[0])
	var decorators []string
	for _, d := range parts[1:] {
		decorators = append(decorators, strings.ToUpper(strings.TrimSpace(d)))
	}
	return name, decorators
}

func decorate(value string, decorators []string) (string, error) {
	verbatim := false
	for _, d := range decorators {
		if d == DecoratorVerbatim {
			verbatim = true
		}
	}
	if !verbatim {
		value = strings.TrimSpace(value)
	}
	for _, d := range decorators {
		switch d {
		case DecoratorUppercase:
			value = strings.ToUpper(value)
		case DecoratorLowercase:
			value = strings.ToLower(value)
		case DecoratorTrim:
			value = strings.TrimSpace(value)
		case DecoratorVerbatim:
		default:
			return "", invalidProperties("unknown property decorator %q", d)
		}
	}
	return value, nil
}

// splitUnescaped splits s on sep, ignoring separators preceded by a backslash.
// Escape sequences are preserved for unescape.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '{', '}', ',', '\\':
				i++
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
