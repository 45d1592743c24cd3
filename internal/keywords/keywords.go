// Package keywords provides the localizable keyword table used by the story
// parser and step matcher.
//
// Tables are YAML documents with one entry per keyword. English, German and
// French tables are embedded; custom tables can be loaded from any reader.
package keywords

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// ErrUnsupportedLocale is returned when no embedded table matches a locale.
var ErrUnsupportedLocale = errors.New("unsupported locale")

// Keywords holds every keyword string the parser recognises.
type Keywords struct {
	Meta         string `yaml:"meta"`
	MetaProperty string `yaml:"meta_property"`
	Narrative    string `yaml:"narrative"`
	InOrderTo    string `yaml:"in_order_to"`
	AsA          string `yaml:"as_a"`
	IWantTo      string `yaml:"i_want_to"`
	SoThat       string `yaml:"so_that"`
	Scenario     string `yaml:"scenario"`
	GivenStories string `yaml:"given_stories"`
	Lifecycle    string `yaml:"lifecycle"`
	Before       string `yaml:"before"`
	After        string `yaml:"after"`

	Scope         string `yaml:"scope"`
	ScopeStory    string `yaml:"scope_story"`
	ScopeScenario string `yaml:"scope_scenario"`

	Outcome        string `yaml:"outcome"`
	OutcomeAny     string `yaml:"outcome_any"`
	OutcomeSuccess string `yaml:"outcome_success"`
	OutcomeFailure string `yaml:"outcome_failure"`
	MetaFilter     string `yaml:"meta_filter"`

	ExamplesTable string `yaml:"examples_table"`

	Given     string `yaml:"given"`
	When      string `yaml:"when"`
	Then      string `yaml:"then"`
	And       string `yaml:"and"`
	Ignorable string `yaml:"ignorable"`
}

var (
	supported = []string{"en", "de", "fr"}
	matcher   = language.NewMatcher([]language.Tag{language.English, language.German, language.French})
	english   = mustLoadEmbedded("en")
)

// English returns the default English keyword table.
func English() Keywords {
	return english
}

// ForLocale returns the embedded table that best matches locale, e.g. "de-CH".
func ForLocale(locale string) (Keywords, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return Keywords{}, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	_, idx, confidence := matcher.Match(tag)
	if confidence == language.No {
		return Keywords{}, fmt.Errorf("%w: %s", ErrUnsupportedLocale, locale)
	}
	return loadEmbedded(supported[idx])
}

// Load reads a keyword table from YAML. Keys missing from the document keep
// their English value; unknown keys are rejected.
func Load(r io.Reader) (Keywords, error) {
	kw := english
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&kw); err != nil {
		return Keywords{}, fmt.Errorf("decode keywords: %w", err)
	}
	if err := kw.Validate(); err != nil {
		return Keywords{}, err
	}
	return kw, nil
}

// Validate checks that no keyword is blank.
func (k Keywords) Validate() error {
	v := reflect.ValueOf(k)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.TrimSpace(v.Field(i).String()) == "" {
			return fmt.Errorf("keyword %q is empty", t.Field(i).Tag.Get("yaml"))
		}
	}
	return nil
}

// StartingWords returns the words that begin a step line, in matching order.
func (k Keywords) StartingWords() []string {
	return []string{k.Given, k.When, k.Then, k.And, k.Ignorable}
}

// StartingWord returns the starting word that text begins with. A word only
// counts when followed by whitespace or end of text, except the ignorable
// marker which may be followed by anything.
func (k Keywords) StartingWord(text string) (string, bool) {
	for _, w := range k.StartingWords() {
		if !strings.HasPrefix(text, w) {
			continue
		}
		rest := text[len(w):]
		if w == k.Ignorable || rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\r' {
			return w, true
		}
	}
	return "", false
}

func loadEmbedded(name string) (Keywords, error) {
	f, err := locales.Open("locales/" + name + ".yaml")
	if err != nil {
		return Keywords{}, fmt.Errorf("open keywords %s: %w", name, err)
	}
	defer f.Close()

	var kw Keywords
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&kw); err != nil {
		return Keywords{}, fmt.Errorf("decode keywords %s: %w", name, err)
	}
	return kw, kw.Validate()
}

func mustLoadEmbedded(name string) Keywords {
	kw, err := loadEmbedded(name)
	if err != nil {
		panic(err)
	}
	return kw
}
