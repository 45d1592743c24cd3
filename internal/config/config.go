// Package config loads embedder controls from YAML or CUE files.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/storyline/internal/engine"
	"github.com/roach88/storyline/internal/keywords"
	"github.com/roach88/storyline/internal/meta"
	"github.com/roach88/storyline/internal/tree"
)

// Config holds the controls of a story run. Zero values take the defaults
// listed in Default.
type Config struct {
	Threads                   int      `yaml:"threads,omitempty" json:"threads,omitempty"`
	StoryTimeouts             string   `yaml:"story_timeouts,omitempty" json:"story_timeouts,omitempty"`
	FailOnStoryTimeout        bool     `yaml:"fail_on_story_timeout,omitempty" json:"fail_on_story_timeout,omitempty"`
	IgnoreFailureInStories    bool     `yaml:"ignore_failure_in_stories,omitempty" json:"ignore_failure_in_stories,omitempty"`
	FailOnPending             bool     `yaml:"fail_on_pending,omitempty" json:"fail_on_pending,omitempty"`
	MetaFilters               []string `yaml:"meta_filters,omitempty" json:"meta_filters,omitempty"`
	SkipScenariosAfterFailure bool     `yaml:"skip_scenarios_after_failure,omitempty" json:"skip_scenarios_after_failure,omitempty"`
	DryRun                    bool     `yaml:"dry_run,omitempty" json:"dry_run,omitempty"`
	MaxGivenStoryDepth        int      `yaml:"max_given_story_depth,omitempty" json:"max_given_story_depth,omitempty"`
	Locale                    string   `yaml:"locale,omitempty" json:"locale,omitempty"`
	KeywordsFile              string   `yaml:"keywords_file,omitempty" json:"keywords_file,omitempty"`
	Stories                   []string `yaml:"stories,omitempty" json:"stories,omitempty"`
	StepDefinitions           []string `yaml:"step_definitions,omitempty" json:"step_definitions,omitempty"`
	HistoryDB                 string   `yaml:"history_db,omitempty" json:"history_db,omitempty"`
}

// Defaults.
const (
	DefaultThreads       = 1
	DefaultStoryTimeouts = "300"
	DefaultLocale        = "en"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		Threads:            DefaultThreads,
		StoryTimeouts:      DefaultStoryTimeouts,
		MaxGivenStoryDepth: tree.DefaultMaxDepth,
		Locale:             DefaultLocale,
	}
}

// withDefaults fills zero values with their defaults.
func (c Config) withDefaults() Config {
	d := Default()
	if c.Threads == 0 {
		c.Threads = d.Threads
	}
	if c.StoryTimeouts == "" {
		c.StoryTimeouts = d.StoryTimeouts
	}
	if c.MaxGivenStoryDepth == 0 {
		c.MaxGivenStoryDepth = d.MaxGivenStoryDepth
	}
	if c.Locale == "" {
		c.Locale = d.Locale
	}
	return c
}

// Load reads a configuration file. Files ending in .cue are evaluated as
// CUE; anything else is parsed as YAML. Relative paths inside the file are
// resolved against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var c Config
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		c, err = ParseCUE(data, path)
	} else {
		c, err = ParseYAML(data, path)
	}
	if err != nil {
		return Config{}, err
	}
	return c.relativeTo(filepath.Dir(path)), nil
}

// ParseYAML parses YAML configuration, rejecting unknown fields.
func ParseYAML(data []byte, name string) (Config, error) {
	var c Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalidConfig, Message: "failed to parse YAML", File: name, Err: err}
	}
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, withFile(err, name)
	}
	return c, nil
}

func (c Config) relativeTo(dir string) Config {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.KeywordsFile = join(c.KeywordsFile)
	c.HistoryDB = join(c.HistoryDB)
	c.Stories = joinAll(c.Stories, join)
	c.StepDefinitions = joinAll(c.StepDefinitions, join)
	return c
}

func joinAll(paths []string, join func(string) string) []string {
	if paths == nil {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = join(p)
	}
	return out
}

// Validate checks values that do not depend on the file format.
func (c Config) Validate() error {
	if c.Threads < 1 {
		return &Error{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("threads must be at least 1, got %d", c.Threads)}
	}
	if c.MaxGivenStoryDepth < 1 {
		return &Error{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("max_given_story_depth must be at least 1, got %d", c.MaxGivenStoryDepth)}
	}
	if _, err := engine.ParseTimeouts(c.StoryTimeouts); err != nil {
		return &Error{Code: ErrCodeInvalidConfig, Message: "invalid story_timeouts", Err: err}
	}
	if _, err := c.Filters(); err != nil {
		return &Error{Code: ErrCodeInvalidConfig, Message: "invalid meta_filters", Err: err}
	}
	return nil
}

// Controls returns the engine controls.
func (c Config) Controls() (engine.Controls, error) {
	timeouts, err := engine.ParseTimeouts(c.StoryTimeouts)
	if err != nil {
		return engine.Controls{}, err
	}
	return engine.Controls{
		Threads:                   c.Threads,
		Timeouts:                  timeouts,
		FailOnStoryTimeout:        c.FailOnStoryTimeout,
		IgnoreFailureInStories:    c.IgnoreFailureInStories,
		FailOnPending:             c.FailOnPending,
		SkipScenariosAfterFailure: c.SkipScenariosAfterFailure,
		DryRun:                    c.DryRun,
	}, nil
}

// Filters compiles the meta filters. Blank entries are skipped.
func (c Config) Filters(opts ...meta.FilterOption) ([]*meta.Filter, error) {
	var filters []*meta.Filter
	for _, text := range c.MetaFilters {
		if strings.TrimSpace(text) == "" {
			continue
		}
		f, err := meta.NewFilter(text, opts...)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// FilterDescription joins the meta filters for reports.
func (c Config) FilterDescription() string {
	return strings.Join(c.MetaFilters, " ")
}

// Keywords returns the keyword table: the keywords file when set,
// otherwise the embedded table for the locale.
func (c Config) Keywords() (keywords.Keywords, error) {
	if c.KeywordsFile != "" {
		f, err := os.Open(c.KeywordsFile)
		if err != nil {
			return keywords.Keywords{}, fmt.Errorf("open keywords file: %w", err)
		}
		defer f.Close()
		return keywords.Load(f)
	}
	locale := c.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	return keywords.ForLocale(locale)
}
