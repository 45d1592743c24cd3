package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyline/internal/engine"
	"github.com/roach88/storyline/internal/meta"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const yamlConfig = `threads: 4
story_timeouts: "60,**/*short*:1"
fail_on_pending: true
ignore_failure_in_stories: true
meta_filters:
  - "-skip"
  - "+theme smoke"
stories:
  - stories/*.story
step_definitions:
  - steps.yaml
history_db: /var/lib/storyline/history.db
`

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "storyline.yaml", yamlConfig)

	c, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, 4, c.Threads)
	assert.True(t, c.FailOnPending)
	assert.True(t, c.IgnoreFailureInStories)
	assert.Equal(t, []string{"-skip", "+theme smoke"}, c.MetaFilters)
	assert.Equal(t, []string{filepath.Join(dir, "stories/*.story")}, c.Stories)
	assert.Equal(t, []string{filepath.Join(dir, "steps.yaml")}, c.StepDefinitions)
	assert.Equal(t, "/var/lib/storyline/history.db", c.HistoryDB)
	assert.Equal(t, DefaultLocale, c.Locale)
	assert.Equal(t, 16, c.MaxGivenStoryDepth)
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "storyline.cue", `
threads: 2
story_timeouts: "30"
dry_run: true
meta_filters: ["-skip"]
locale: "de"
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Threads)
	assert.Equal(t, "30", c.StoryTimeouts)
	assert.True(t, c.DryRun)
	assert.Equal(t, []string{"-skip"}, c.MetaFilters)
	assert.Equal(t, "de", c.Locale)
	assert.Equal(t, 16, c.MaxGivenStoryDepth)
}

func TestLoad_CUEEmptyUsesDefaults(t *testing.T) {
	c, err := Load(writeFile(t, "empty.cue", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml unknown field", file: "c.yaml", content: "thread: 2\n"},
		{name: "yaml negative threads", file: "c.yaml", content: "threads: -1\n"},
		{name: "yaml bad timeouts", file: "c.yaml", content: "story_timeouts: soon\n"},
		{name: "yaml bad filter", file: "c.yaml", content: "meta_filters: [\"groovy: (\"]\n"},
		{name: "cue constraint", file: "c.cue", content: "threads: 0\n"},
		{name: "cue unknown field", file: "c.cue", content: "thread: 2\n"},
		{name: "cue wrong type", file: "c.cue", content: "dry_run: \"yes\"\n"},
		{name: "cue syntax", file: "c.cue", content: "threads: {\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, IsInvalidConfig(err), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestControls(t *testing.T) {
	c, err := ParseYAML([]byte(yamlConfig), "inline")
	require.NoError(t, err)

	controls, err := c.Controls()
	require.NoError(t, err)
	assert.Equal(t, 4, controls.Threads)
	assert.True(t, controls.FailOnPending)
	assert.True(t, controls.IgnoreFailureInStories)
	assert.Equal(t, time.Second, controls.Timeouts.For("stories/a_short.story"))
	assert.Equal(t, 60*time.Second, controls.Timeouts.For("stories/long.story"))
}

func TestFilters(t *testing.T) {
	c := Config{MetaFilters: []string{"-skip", " ", "+theme smoke"}}

	filters, err := c.Filters()
	require.NoError(t, err)
	require.Len(t, filters, 2)

	fs := meta.Filters(filters)
	assert.True(t, fs.Allow(meta.New(map[string]string{"theme": "smoke"})))
	assert.False(t, fs.Allow(meta.New(map[string]string{"theme": "smoke", "skip": ""})))
	assert.Equal(t, "-skip   +theme smoke", c.FilterDescription())
}

func TestKeywords(t *testing.T) {
	kw, err := Default().Keywords()
	require.NoError(t, err)
	assert.Equal(t, "Given", kw.Given)

	path := writeFile(t, "kw.yaml", "given: Gegeben\n")
	kw, err = Config{KeywordsFile: path}.Keywords()
	require.NoError(t, err)
	assert.Equal(t, "Gegeben", kw.Given)
	assert.Equal(t, "When", kw.When)
}

func TestDefaultTimeouts(t *testing.T) {
	controls, err := Default().Controls()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultStoryTimeout, controls.Timeouts.For("any.story"))
}
