package story

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/storyline/internal/keywords"
	"github.com/roach88/storyline/internal/meta"
	"github.com/roach88/storyline/internal/table"
)

// Parser turns story text into a Story. A Parser is immutable and safe for
// concurrent use.
type Parser struct {
	kw     keywords.Keywords
	tables *table.Parser

	narrative            *regexp.Regexp
	alternativeNarrative *regexp.Regexp
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithKeywords sets the keyword table. Defaults to English.
func WithKeywords(kw keywords.Keywords) ParserOption {
	return func(p *Parser) {
		p.kw = kw
	}
}

// WithTableParser sets the parser used for examples tables.
func WithTableParser(tp *table.Parser) ParserOption {
	return func(p *Parser) {
		p.tables = tp
	}
}

// NewParser creates a story parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{kw: keywords.English(), tables: table.NewParser()}
	for _, opt := range opts {
		opt(p)
	}
	q := regexp.QuoteMeta
	p.narrative = regexp.MustCompile(`(?s)` + q(p.kw.InOrderTo) + `(.*?)` + q(p.kw.AsA) + `(.*?)` + q(p.kw.IWantTo) + `(.*)`)
	p.alternativeNarrative = regexp.MustCompile(`(?s)` + q(p.kw.AsA) + `(.*?)` + q(p.kw.IWantTo) + `(.*?)` + q(p.kw.SoThat) + `(.*)`)
	return p
}

// Keywords returns the keyword table in use.
func (p *Parser) Keywords() keywords.Keywords {
	return p.kw
}

// Tables returns the examples table parser in use.
func (p *Parser) Tables() *table.Parser {
	return p.tables
}

// Parse parses story text. storyPath is recorded on the story and its base
// name becomes the display name.
func (p *Parser) Parse(text, storyPath string) (*Story, error) {
	text = norm.NFC.String(strings.ReplaceAll(text, "\r\n", "\n"))
	lines := strings.Split(text, "\n")

	s := &Story{Path: storyPath, Name: NameOf(storyPath)}

	preamble, body, implicit := p.splitPreamble(lines)
	if err := p.parsePreamble(s, preamble); err != nil {
		return nil, err
	}

	var chunks [][]string
	if implicit {
		chunks = [][]string{body}
	} else {
		chunks = p.splitScenarios(body)
	}
	for _, chunk := range chunks {
		sc, err := p.parseScenario(chunk, !implicit)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Path = storyPath
			}
			return nil, err
		}
		s.Scenarios = append(s.Scenarios, sc)
	}
	return s, nil
}

// NameOf returns the display name for a story path.
func NameOf(storyPath string) string {
	if storyPath == "" {
		return ""
	}
	return path.Base(filepath.ToSlash(storyPath))
}

func (p *Parser) hasKeyword(line, keyword string) bool {
	return keyword != "" && strings.HasPrefix(line, keyword)
}

func after(line, keyword string) string {
	return strings.TrimSpace(line[len(keyword):])
}

// splitPreamble separates the story-level sections from the scenarios. When
// no scenario keyword is present, the first step line outside the lifecycle
// section starts a single untitled scenario.
func (p *Parser) splitPreamble(lines []string) (preamble, body []string, implicit bool) {
	inLifecycle := false
	for i, line := range lines {
		t := strings.TrimLeft(line, " \t")
		switch {
		case p.hasKeyword(t, p.kw.Scenario):
			return lines[:i], lines[i:], false
		case p.hasKeyword(t, p.kw.Lifecycle):
			inLifecycle = true
		case p.hasKeyword(t, p.kw.Meta), p.hasKeyword(t, p.kw.Narrative), p.hasKeyword(t, p.kw.GivenStories):
			inLifecycle = false
		}
		if !inLifecycle {
			if _, ok := p.kw.StartingWord(t); ok {
				return lines[:i], lines[i:], true
			}
		}
	}
	return lines, nil, false
}

const (
	sectionDescription = "Description"
	sectionMeta        = "Meta"
	sectionNarrative   = "Narrative"
	sectionGiven       = "GivenStories"
	sectionLifecycle   = "Lifecycle"
	sectionScenario    = "Scenario"
	sectionExamples    = "Examples"
)

func (p *Parser) parsePreamble(s *Story, lines []string) error {
	sections := map[string][]string{}
	current := sectionDescription
	for _, line := range lines {
		t := strings.TrimLeft(line, " \t")
		switch {
		case p.hasKeyword(t, p.kw.Meta):
			current = sectionMeta
			line = after(t, p.kw.Meta)
		case p.hasKeyword(t, p.kw.Narrative):
			current = sectionNarrative
			line = after(t, p.kw.Narrative)
		case p.hasKeyword(t, p.kw.GivenStories):
			current = sectionGiven
			line = after(t, p.kw.GivenStories)
		case p.hasKeyword(t, p.kw.Lifecycle):
			current = sectionLifecycle
			line = after(t, p.kw.Lifecycle)
		}
		sections[current] = append(sections[current], line)
	}

	s.Description = strings.TrimSpace(strings.Join(sections[sectionDescription], "\n"))
	s.Meta = meta.Parse(strings.Join(sections[sectionMeta], "\n"), p.kw)
	s.Narrative = p.parseNarrative(strings.Join(sections[sectionNarrative], "\n"))

	given, err := ParseGivenStories(strings.Join(sections[sectionGiven], "\n"))
	if err != nil {
		return &ParseError{Path: s.Path, Section: sectionGiven, Message: "invalid given story reference", Err: err}
	}
	s.GivenStories = given

	lifecycle, err := p.parseLifecycle(sections[sectionLifecycle])
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = s.Path
		}
		return err
	}
	s.Lifecycle = lifecycle
	return nil
}

func (p *Parser) parseNarrative(text string) Narrative {
	text = strings.TrimSpace(text)
	if text == "" {
		return Narrative{}
	}
	if m := p.narrative.FindStringSubmatch(text); m != nil {
		return Narrative{
			InOrderTo: strings.TrimSpace(m[1]),
			AsA:       strings.TrimSpace(m[2]),
			IWantTo:   strings.TrimSpace(m[3]),
		}
	}
	if m := p.alternativeNarrative.FindStringSubmatch(text); m != nil {
		return Narrative{
			AsA:     strings.TrimSpace(m[1]),
			IWantTo: strings.TrimSpace(m[2]),
			SoThat:  strings.TrimSpace(m[3]),
		}
	}
	return Narrative{}
}

func (p *Parser) splitScenarios(lines []string) [][]string {
	var chunks [][]string
	for _, line := range lines {
		if p.hasKeyword(strings.TrimLeft(line, " \t"), p.kw.Scenario) {
			chunks = append(chunks, nil)
		}
		if len(chunks) > 0 {
			chunks[len(chunks)-1] = append(chunks[len(chunks)-1], line)
		}
	}
	return chunks
}

type scenarioMode int

const (
	modeTitle scenarioMode = iota
	modeMeta
	modeGiven
	modeStep
	modeExamples
)

func (p *Parser) parseScenario(lines []string, titled bool) (Scenario, error) {
	var (
		mode                                    = modeTitle
		titleLines, metaLines, givenLines, rows []string
		steps, current                          []string
	)
	flush := func() {
		if len(current) > 0 {
			steps = append(steps, strings.TrimRight(strings.Join(current, "\n"), " \t\n"))
			current = nil
		}
	}

	if titled && len(lines) > 0 {
		titleLines = append(titleLines, after(strings.TrimLeft(lines[0], " \t"), p.kw.Scenario))
		lines = lines[1:]
	}

	for _, line := range lines {
		if mode == modeExamples {
			rows = append(rows, line)
			continue
		}
		t := strings.TrimLeft(line, " \t")
		_, isStep := p.kw.StartingWord(t)
		beforeSteps := mode != modeStep
		switch {
		case p.hasKeyword(t, p.kw.ExamplesTable):
			flush()
			mode = modeExamples
			rows = append(rows, after(t, p.kw.ExamplesTable))
		case beforeSteps && p.hasKeyword(t, p.kw.Meta):
			mode = modeMeta
			metaLines = append(metaLines, after(t, p.kw.Meta))
		case beforeSteps && p.hasKeyword(t, p.kw.GivenStories):
			mode = modeGiven
			givenLines = append(givenLines, after(t, p.kw.GivenStories))
		case isStep:
			flush()
			mode = modeStep
			current = []string{t}
		default:
			switch mode {
			case modeTitle:
				titleLines = append(titleLines, line)
			case modeMeta:
				metaLines = append(metaLines, line)
			case modeGiven:
				givenLines = append(givenLines, line)
			case modeStep:
				current = append(current, line)
			}
		}
	}
	flush()

	sc := Scenario{
		Title: strings.TrimSpace(strings.Join(titleLines, "\n")),
		Meta:  meta.Parse(strings.Join(metaLines, "\n"), p.kw),
		Steps: steps,
	}

	given, err := ParseGivenStories(strings.Join(givenLines, "\n"))
	if err != nil {
		return Scenario{}, &ParseError{Section: sectionScenario, Message: "invalid given story reference in " + quoteTitle(sc.Title), Err: err}
	}
	sc.GivenStories = given

	examples, err := p.tables.Parse(strings.Join(rows, "\n"))
	if err != nil {
		return Scenario{}, &ParseError{Section: sectionExamples, Message: "invalid examples table in " + quoteTitle(sc.Title), Err: err}
	}
	sc.Examples = examples
	return sc, nil
}

func quoteTitle(title string) string {
	if title == "" {
		return "untitled scenario"
	}
	return "scenario '" + title + "'"
}

// findSteps groups lines into steps. A step starts at a line beginning with
// a starting word and runs until the next such line. Lines before the first
// step are dropped.
func (p *Parser) findSteps(lines []string) []string {
	var steps []string
	var current []string
	for _, line := range lines {
		t := strings.TrimLeft(line, " \t")
		if _, ok := p.kw.StartingWord(t); ok {
			if len(current) > 0 {
				steps = append(steps, strings.TrimRight(strings.Join(current, "\n"), " \t\n"))
			}
			current = []string{t}
			continue
		}
		if len(current) > 0 {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		steps = append(steps, strings.TrimRight(strings.Join(current, "\n"), " \t\n"))
	}
	return steps
}

// ParseGivenStories parses a comma-separated list of story references, each
// optionally followed by a #{anchor}.
func ParseGivenStories(text string) (GivenStories, error) {
	g := GivenStories{Text: strings.TrimSpace(text)}
	for _, ref := range strings.Split(g.Text, ",") {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		gs := GivenStory{Path: ref}
		if i := strings.Index(ref, "#{"); i >= 0 {
			if !strings.HasSuffix(ref, "}") {
				return GivenStories{}, &ParseError{Section: sectionGiven, Message: "unterminated anchor in " + ref}
			}
			gs.Path = strings.TrimSpace(ref[:i])
			gs.Anchor = strings.TrimSpace(ref[i+2 : len(ref)-1])
		}
		if gs.Path == "" {
			return GivenStories{}, &ParseError{Section: sectionGiven, Message: "missing path in " + ref}
		}
		g.Stories = append(g.Stories, gs)
	}
	return g, nil
}
