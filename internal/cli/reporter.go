package cli

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/storyline/internal/engine"
	"github.com/roach88/storyline/internal/story"
	"github.com/roach88/storyline/internal/tree"
)

// styles colour step outcomes. On writers that are not terminals the
// renderer drops the colour codes.
type styles struct {
	title        lipgloss.Style
	failed       lipgloss.Style
	pending      lipgloss.Style
	notPerformed lipgloss.Style
	muted        lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:        r.NewStyle().Bold(true),
		failed:       r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		pending:      r.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		notPerformed: r.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		muted:        r.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

// textReporter writes a readable outline of one story.
type textReporter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	depth  int
	styles styles

	// excluded holds the filter of an excluded story until BeforeStory.
	excluded *string
}

func (r *textReporter) line(format string, args ...any) {
	r.lineAt(r.depth, format, args...)
}

func (r *textReporter) lineAt(depth int, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(&r.buf, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

// WriteTo copies the report to w.
func (r *textReporter) WriteTo(w io.Writer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.WriteTo(w)
}

func (r *textReporter) BeforeStory(s *tree.Story, given bool) {
	label := "Story:"
	if given {
		label = "GivenStory:"
	}
	r.line("%s %s", r.styles.title.Render(label), s.Path)
	r.depth++
	if r.excluded != nil {
		r.line("%s", r.styles.muted.Render(fmt.Sprintf("(excluded by filter: %s)", *r.excluded)))
		r.excluded = nil
	}
}

func (r *textReporter) StoryExcluded(_ *tree.Story, filter string) {
	r.excluded = &filter
}

func (r *textReporter) Narrative(n story.Narrative) {
	if n.IsEmpty() {
		return
	}
	r.line("Narrative:")
	for _, part := range []struct{ label, text string }{
		{"In order to", n.InOrderTo},
		{"As a", n.AsA},
		{"I want to", n.IWantTo},
		{"So that", n.SoThat},
	} {
		if part.text != "" {
			r.line("  %s %s", part.label, part.text)
		}
	}
}

func (r *textReporter) Lifecycle(story.Lifecycle) {}

func (r *textReporter) GivenStories(g story.GivenStories) {
	r.line("GivenStories: %s", strings.Join(g.Paths(), ", "))
}

func (r *textReporter) BeforeScenario(sc *tree.Scenario) {
	r.line("%s %s", r.styles.title.Render("Scenario:"), sc.Title)
	r.depth++
}

func (r *textReporter) ScenarioExcluded(sc *tree.Scenario, _ string) {
	r.line("%s %s %s", r.styles.title.Render("Scenario:"), sc.Title,
		r.styles.muted.Render("(excluded)"))
}

func (r *textReporter) Example(params map[string]string, index int) {
	r.line("Example %d: %s", index, formatParams(params))
}

func (r *textReporter) Successful(step string) {
	r.line("%s", step)
}

func (r *textReporter) Failed(step string, err error) {
	r.line("%s %s", step, r.styles.failed.Render("(FAILED)"))
	r.line("  %s", r.styles.failed.Render(err.Error()))
}

func (r *textReporter) Pending(step string) {
	r.line("%s %s", step, r.styles.pending.Render("(PENDING)"))
}

func (r *textReporter) NotPerformed(step string) {
	r.line("%s %s", step, r.styles.notPerformed.Render("(NOT PERFORMED)"))
}

func (r *textReporter) Ignorable(step string) {
	r.line("%s", r.styles.muted.Render(step))
}

func (r *textReporter) AfterScenario(*tree.Scenario, time.Duration) {
	r.depth--
}

func (r *textReporter) StoryCancelled(_ *tree.Story, d time.Duration) {
	r.line("%s", r.styles.failed.Render(fmt.Sprintf("(cancelled after %s)", d.Round(time.Millisecond))))
}

func (r *textReporter) StoryTimeout(_ *tree.Story, timeout time.Duration) {
	r.lineAt(1, "%s", r.styles.failed.Render(fmt.Sprintf("(timed out after %s)", timeout)))
}

func (r *textReporter) AfterStory(*tree.Story, bool) {
	r.depth--
}

// textReports hands out one textReporter per top-level story so that
// concurrent stories do not interleave.
type textReports struct {
	mu      sync.Mutex
	styles  styles
	reports map[*tree.Story]*textReporter
}

func newTextReports(w io.Writer) *textReports {
	return &textReports{styles: newStyles(w), reports: make(map[*tree.Story]*textReporter)}
}

func (t *textReports) reporter(s *tree.Story) engine.Reporter {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := &textReporter{styles: t.styles}
	t.reports[s] = r
	return r
}

// writeTo writes the reports of t's stories in tree order. Stories that
// never started have no report.
func (t *textReports) writeTo(w io.Writer, tr *tree.Tree) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range tr.Stories {
		r, ok := t.reports[s]
		if !ok {
			continue
		}
		if _, err := r.WriteTo(w); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
