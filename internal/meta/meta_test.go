package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyline/internal/keywords"
)

func TestParse(t *testing.T) {
	m := Parse("@author Mauro Talevi\n@theme parsing !-- ignored @hidden\n@skip @priority 1", keywords.English())

	assert.Equal(t, []string{"author", "priority", "skip", "theme"}, m.Names())
	assert.Equal(t, "Mauro Talevi", m.Get("author"))
	assert.Equal(t, "parsing", m.Get("theme"))
	assert.Equal(t, "1", m.Get("priority"))
	assert.True(t, m.Has("skip"))
	assert.Equal(t, "", m.Get("skip"))
	assert.False(t, m.Has("hidden"))
}

func TestParse_Empty(t *testing.T) {
	m := Parse("  \n", keywords.English())
	assert.True(t, m.IsEmpty())
	assert.Equal(t, "", m.String())
}

func TestInheritFrom(t *testing.T) {
	tests := []struct {
		name   string
		child  map[string]string
		parent map[string]string
		want   map[string]string
	}{
		{"child wins on conflict", map[string]string{"a": "child"}, map[string]string{"a": "parent"}, map[string]string{"a": "child"}},
		{"parent fills gaps", map[string]string{"a": "1"}, map[string]string{"b": "2"}, map[string]string{"a": "1", "b": "2"}},
		{"empty child", nil, map[string]string{"b": "2"}, map[string]string{"b": "2"}},
		{"empty parent", map[string]string{"a": ""}, nil, map[string]string{"a": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child, parent := New(tt.child), New(tt.parent)
			got := child.InheritFrom(parent)
			assert.Equal(t, tt.want, got.Properties())

			for k, v := range tt.child {
				assert.Equal(t, v, got.Get(k))
			}
			assert.Equal(t, tt.child, nilIfEmpty(child.Properties()), "receiver is unchanged")
		})
	}
}

func nilIfEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

func TestString(t *testing.T) {
	m := New(map[string]string{"theme": "parsing", "skip": ""})
	assert.Equal(t, "@skip @theme parsing", m.String())
}

func TestClauseFilter(t *testing.T) {
	meta := New(map[string]string{"author": "Mauro", "theme": "parsing", "skip": ""})

	tests := []struct {
		filter string
		want   bool
	}{
		{"", true},
		{"+author Mauro", true},
		{"+author Paul", false},
		{"+theme pars*", true},
		{"+theme *ing", true},
		{"+theme x*", false},
		{"+missing value", false},
		{"-skip", false},
		{"-author Paul", true},
		{"-author Mauro", false},
		{"+author Paul +theme parsing", true},
		{"-author Paul -theme parsing", false},
		{"+skip anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			f, err := NewFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Allow(meta))
		})
	}
}

// Both include and exclude clauses present: the result is the OR of the two
// single-sided rules, not their AND. These cases pin that behavior.
func TestClauseFilter_IncludeAndExcludeUseOr(t *testing.T) {
	f := MustFilter("+theme parsing -author Mauro")

	both := New(map[string]string{"theme": "parsing", "author": "Mauro"})
	assert.True(t, f.Allow(both), "include matches, exclude matches: allowed by include rule")

	neither := New(map[string]string{"theme": "other", "author": "Paul"})
	assert.True(t, f.Allow(neither), "include misses, exclude misses: allowed by exclude rule")

	excludedOnly := New(map[string]string{"theme": "other", "author": "Mauro"})
	assert.False(t, f.Allow(excludedOnly), "include misses, exclude matches: denied")
}

func TestClauseFilter_Idempotent(t *testing.T) {
	f := MustFilter("+theme pars* -skip")
	m := New(map[string]string{"theme": "parsing"})

	first := f.Allow(m)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, f.Allow(m))
	}
}

func TestExpressionFilter(t *testing.T) {
	meta := New(map[string]string{"author": "Mauro", "theme": "parsing", "skip": ""})

	tests := []struct {
		filter string
		want   bool
	}{
		{"groovy: author == 'Mauro'", true},
		{"groovy: author != 'Mauro'", false},
		{"groovy: skip", true},
		{"groovy: !skip", false},
		{"groovy: missing", false},
		{"groovy: missing || (theme == 'parsing' && author == 'Mauro')", true},
		{"js: theme == \"parsing\" && !skip", false},
		{"groovy: author == 'theme'", false},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			f, err := NewFilter(tt.filter)
			require.NoError(t, err)
			ok, err := f.Check(meta)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestExpressionFilter_Invalid(t *testing.T) {
	_, err := NewFilter("groovy: author ==")
	require.Error(t, err)
	assert.True(t, IsInvalidFilter(err))
}

func TestExpressionFilter_EvaluationError(t *testing.T) {
	f := MustFilter("js: author.nope.deeper")
	ok, err := f.Check(New(map[string]string{"author": "x"}))
	require.Error(t, err)
	assert.False(t, ok)
	assert.False(t, f.Allow(New(map[string]string{"author": "x"})))
}

type constMatcher bool

func (c constMatcher) Match(Meta) (bool, error) { return bool(c), nil }

func TestWithMatcher(t *testing.T) {
	f, err := NewFilter("never: whatever", WithMatcher("never:", func(string) (Matcher, error) {
		return constMatcher(false), nil
	}))
	require.NoError(t, err)
	assert.False(t, f.Allow(Empty))
	assert.Equal(t, "never: whatever", f.String())
}

func TestWithMatcher_LongestPrefixWins(t *testing.T) {
	opts := []FilterOption{
		WithMatcher("never:", func(string) (Matcher, error) { return constMatcher(false), nil }),
		WithMatcher("never:ever:", func(string) (Matcher, error) { return constMatcher(true), nil }),
	}
	for i := 0; i < 20; i++ {
		f, err := NewFilter("never:ever: whatever", opts...)
		require.NoError(t, err)
		assert.True(t, f.Allow(Empty))
	}
}

func TestFilters(t *testing.T) {
	fs := Filters{MustFilter("+theme parsing"), MustFilter("-skip")}
	assert.True(t, fs.Allow(New(map[string]string{"theme": "parsing"})))
	assert.False(t, fs.Allow(New(map[string]string{"theme": "parsing", "skip": ""})))
	assert.True(t, Filters(nil).Allow(Empty))
}

func TestNilFilterAllows(t *testing.T) {
	var f *Filter
	assert.True(t, f.Allow(Empty))
}
