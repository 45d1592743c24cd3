package story

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyline/internal/keywords"
)

func parse(t *testing.T, text string) *Story {
	t.Helper()
	s, err := NewParser().Parse(text, "stories/test.story")
	require.NoError(t, err)
	return s
}

func TestParse_Golden(t *testing.T) {
	text, err := os.ReadFile(filepath.Join("testdata", "full.story"))
	require.NoError(t, err)

	s, err := NewParser().Parse(string(text), "stories/full.story")
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	require.NoError(t, enc.Encode(ToView(s)))

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "full_story", buf.Bytes())
}

func TestParse_NameFromPath(t *testing.T) {
	s := parse(t, "Scenario: x\nGiven y")
	assert.Equal(t, "stories/test.story", s.Path)
	assert.Equal(t, "test.story", s.Name)

	s, err := NewParser().Parse("Given y", "")
	require.NoError(t, err)
	assert.Equal(t, "", s.Name)
}

func TestParse_ImplicitScenario(t *testing.T) {
	s := parse(t, "Some description\nGiven a step\nWhen another\nThen done")

	assert.Equal(t, "Some description", s.Description)
	require.Len(t, s.Scenarios, 1)
	assert.Equal(t, "", s.Scenarios[0].Title)
	assert.Equal(t, []string{"Given a step", "When another", "Then done"}, s.Scenarios[0].Steps)
}

func TestParse_NoScenarios(t *testing.T) {
	s := parse(t, "Just a description\nwith two lines")
	assert.Equal(t, "Just a description\nwith two lines", s.Description)
	assert.Empty(t, s.Scenarios)
}

func TestParse_AlternativeNarrative(t *testing.T) {
	s := parse(t, "Narrative:\nAs a user\nI want to log in\nSo that I can work\nScenario: s\nGiven x")

	assert.Equal(t, Narrative{AsA: "user", IWantTo: "log in", SoThat: "I can work"}, s.Narrative)
}

func TestParse_MultiLineStepWithTable(t *testing.T) {
	s := parse(t, `Scenario: tabular argument
Given the traders:
|name|rating|
|Larry|Stable|
|Moe|Volatile|
When I rate them
  And wait
Then all is well`)

	require.Len(t, s.Scenarios, 1)
	assert.Equal(t, []string{
		"Given the traders:\n|name|rating|\n|Larry|Stable|\n|Moe|Volatile|",
		"When I rate them",
		"And wait",
		"Then all is well",
	}, s.Scenarios[0].Steps)
	assert.False(t, s.Scenarios[0].HasExamples())
}

func TestParse_ScenarioSections(t *testing.T) {
	s := parse(t, `Meta: @story-level yes
Scenario: first
with a long title
Meta:
@id one
@skip
GivenStories: a.story#{0}, b/c.story#{id:login;env:ci}
Given x
Examples:
{trim=false}
|v|
|1 |

Scenario: second
Given y`)

	require.Len(t, s.Scenarios, 2)
	first := s.Scenarios[0]
	assert.Equal(t, "first\nwith a long title", first.Title)
	assert.Equal(t, "one", first.Meta.Get("id"))
	assert.True(t, first.Meta.Has("skip"))
	assert.Equal(t, []string{"a.story", "b/c.story"}, first.GivenStories.Paths())
	assert.True(t, first.GivenStories.RequireParameters())
	assert.Equal(t, 0, first.GivenStories.Stories[0].RowIndex())
	assert.Equal(t, map[string]string{"id": "login", "env": "ci"}, first.GivenStories.Stories[1].AnchorParameters())
	assert.Equal(t, []string{"Given x"}, first.Steps)
	assert.Equal(t, []map[string]string{{"v": "1 "}}, first.Examples.Rows())

	assert.Equal(t, "yes", s.Meta.Get("story-level"))
	assert.True(t, s.Scenarios[1].Meta.IsEmpty())
}

func TestParse_LifecycleScopes(t *testing.T) {
	s := parse(t, `Lifecycle:
Before:
Scope: STORY
Given story setup
Scope: SCENARIO
Given scenario setup
After:
Scope: SCENARIO
Outcome: ANY
Then always
Outcome: SUCCESS
Then on success
MetaFilter: -skip
Then filtered on success
Scope: STORY
Then story teardown

Scenario: s
Given x`)

	lc := s.Lifecycle
	assert.Equal(t, []string{"Given story setup"}, lc.BeforeSteps(ScopeStory))
	assert.Equal(t, []string{"Given scenario setup"}, lc.BeforeSteps(ScopeScenario))

	after := lc.AfterSteps(ScopeScenario)
	require.Len(t, after, 3)
	assert.Equal(t, LifecycleSteps{Scope: ScopeScenario, Outcome: OutcomeAny, Steps: []string{"Then always"}}, after[0])
	assert.Equal(t, LifecycleSteps{Scope: ScopeScenario, Outcome: OutcomeSuccess, Steps: []string{"Then on success"}}, after[1])
	assert.Equal(t, LifecycleSteps{Scope: ScopeScenario, Outcome: OutcomeSuccess, MetaFilter: "-skip", Steps: []string{"Then filtered on success"}}, after[2])

	storyAfter := lc.AfterSteps(ScopeStory)
	require.Len(t, storyAfter, 1)
	assert.Equal(t, []string{"Then story teardown"}, storyAfter[0].Steps)
	assert.False(t, lc.HasExamples())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		section string
	}{
		{"bad outcome", "Lifecycle:\nAfter:\nOutcome: SOMETIMES\nThen x\nScenario: s\nGiven y", sectionLifecycle},
		{"bad scope", "Lifecycle:\nBefore:\nScope: GALAXY\nGiven x\nScenario: s\nGiven y", sectionLifecycle},
		{"stray lifecycle text", "Lifecycle:\nwhatever\nScenario: s\nGiven y", sectionLifecycle},
		{"bad lifecycle table", "Lifecycle:\nExamples:\n{trim=false\n|a|\nScenario: s\nGiven y", sectionLifecycle},
		{"bad scenario table", "Scenario: s\nGiven y\nExamples:\n{transformer=NOPE}\n|a|", sectionExamples},
		{"unterminated anchor", "GivenStories: a.story#{1\nScenario: s\nGiven y", sectionGiven},
		{"scenario anchor without path", "Scenario: s\nGivenStories: #{1}\nGiven y", sectionScenario},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewParser().Parse(tt.text, "bad.story")
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, IsParseError(err))

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.section, pe.Section)
			assert.Equal(t, "bad.story", pe.Path)
		})
	}
}

func TestParse_NormalizesUnicode(t *testing.T) {
	decomposed := "Scenario: cafe\u0301\nGiven cafe\u0301"
	s := parse(t, decomposed)
	assert.Equal(t, "caf\u00e9", s.Scenarios[0].Title)
	assert.Equal(t, "Given caf\u00e9", s.Scenarios[0].Steps[0])
}

func TestParse_CRLF(t *testing.T) {
	s := parse(t, "Scenario: s\r\nGiven a\r\nThen b\r\n")
	assert.Equal(t, []string{"Given a", "Then b"}, s.Scenarios[0].Steps)
}

func TestParse_LocalizedKeywords(t *testing.T) {
	kw, err := keywords.ForLocale("de")
	require.NoError(t, err)

	s, err := NewParser(WithKeywords(kw)).Parse("Szenario: Haus\nGegeben ein Haus\nDann steht es", "haus.story")
	require.NoError(t, err)
	require.Len(t, s.Scenarios, 1)
	assert.Equal(t, "Haus", s.Scenarios[0].Title)
	assert.Equal(t, []string{"Gegeben ein Haus", "Dann steht es"}, s.Scenarios[0].Steps)
}

func TestParseGivenStories(t *testing.T) {
	g, err := ParseGivenStories(" one.story , two.story#{2},\nthree.story ")
	require.NoError(t, err)

	assert.Equal(t, []string{"one.story", "two.story", "three.story"}, g.Paths())
	assert.Equal(t, 2, g.Stories[1].RowIndex())
	assert.Equal(t, -1, g.Stories[0].RowIndex())
	assert.Nil(t, g.Stories[1].AnchorParameters())
	assert.Equal(t, "two.story#{2}", g.Stories[1].String())

	empty, err := ParseGivenStories("  ")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.RequireParameters())
}

func TestWithScenarios(t *testing.T) {
	s := parse(t, "Scenario: a\nGiven x\nScenario: b\nGiven y")
	only := s.WithScenarios(s.Scenarios[1:])
	assert.Len(t, only.Scenarios, 1)
	assert.Len(t, s.Scenarios, 2)
	assert.True(t, strings.HasSuffix(only.Path, "test.story"))
}
