package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/storyline/internal/story"
	"github.com/roach88/storyline/internal/tree"
)

// Status is the result of a step, run, scenario or story.
type Status string

const (
	StatusSuccessful   Status = "SUCCESSFUL"
	StatusFailed       Status = "FAILED"
	StatusPending      Status = "PENDING"
	StatusNotPerformed Status = "NOT_PERFORMED"
	StatusIgnorable    Status = "IGNORABLE"
	StatusExcluded     Status = "EXCLUDED"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusCancelled    Status = "CANCELLED"
)

// Reporter receives the events of one story in order. The runner calls a
// Reporter from a single goroutine, except that StoryTimeout may arrive while
// an abandoned story is still reporting. A Reporter shared between stories
// must synchronize itself.
type Reporter interface {
	BeforeStory(s *tree.Story, given bool)
	StoryExcluded(s *tree.Story, filter string)
	Narrative(n story.Narrative)
	Lifecycle(l story.Lifecycle)
	GivenStories(g story.GivenStories)
	BeforeScenario(sc *tree.Scenario)
	ScenarioExcluded(sc *tree.Scenario, filter string)
	Example(params map[string]string, index int)

	Successful(step string)
	Failed(step string, err error)
	Pending(step string)
	NotPerformed(step string)
	Ignorable(step string)

	AfterScenario(sc *tree.Scenario, d time.Duration)
	StoryCancelled(s *tree.Story, d time.Duration)
	StoryTimeout(s *tree.Story, timeout time.Duration)
	AfterStory(s *tree.Story, given bool)
}

// ReporterFactory returns the reporter for a top-level story of the tree.
// Stories sharing a path are distinct nodes and get distinct reporters.
type ReporterFactory func(s *tree.Story) Reporter

// NopReporter ignores every event. Embed it to implement part of Reporter.
type NopReporter struct{}

func (NopReporter) BeforeStory(*tree.Story, bool)               {}
func (NopReporter) StoryExcluded(*tree.Story, string)           {}
func (NopReporter) Narrative(story.Narrative)                   {}
func (NopReporter) Lifecycle(story.Lifecycle)                   {}
func (NopReporter) GivenStories(story.GivenStories)             {}
func (NopReporter) BeforeScenario(*tree.Scenario)               {}
func (NopReporter) ScenarioExcluded(*tree.Scenario, string)     {}
func (NopReporter) Example(map[string]string, int)              {}
func (NopReporter) Successful(string)                           {}
func (NopReporter) Failed(string, error)                        {}
func (NopReporter) Pending(string)                              {}
func (NopReporter) NotPerformed(string)                         {}
func (NopReporter) Ignorable(string)                            {}
func (NopReporter) AfterScenario(*tree.Scenario, time.Duration) {}
func (NopReporter) StoryCancelled(*tree.Story, time.Duration)   {}
func (NopReporter) StoryTimeout(*tree.Story, time.Duration)     {}
func (NopReporter) AfterStory(*tree.Story, bool)                {}

// Recorder is a Reporter that keeps a one-line description of every event.
// Durations are left out so that recordings are stable. Safe for concurrent
// use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Events returns the recorded events in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// String joins the events with newlines.
func (r *Recorder) String() string {
	return strings.Join(r.Events(), "\n") + "\n"
}

func (r *Recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *Recorder) BeforeStory(s *tree.Story, given bool) {
	if given {
		r.add("beforeGivenStory %s", s.Path)
		return
	}
	r.add("beforeStory %s", s.Path)
}

func (r *Recorder) StoryExcluded(s *tree.Story, filter string) {
	r.add("storyExcluded %s filter=%q", s.Path, filter)
}

func (r *Recorder) Narrative(n story.Narrative) {
	if n.IsEmpty() {
		return
	}
	var parts []string
	for _, p := range []string{n.InOrderTo, n.AsA, n.IWantTo, n.SoThat} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	r.add("narrative %s", strings.Join(parts, "/"))
}

func (r *Recorder) Lifecycle(l story.Lifecycle) {
	if !l.IsEmpty() {
		r.add("lifecycle before=%d after=%d", len(l.Before), len(l.After))
	}
}

func (r *Recorder) GivenStories(g story.GivenStories) {
	r.add("givenStories %s", strings.Join(g.Paths(), ","))
}

func (r *Recorder) BeforeScenario(sc *tree.Scenario) {
	r.add("beforeScenario %s", sc.Title)
}

func (r *Recorder) ScenarioExcluded(sc *tree.Scenario, filter string) {
	r.add("scenarioExcluded %s filter=%q", sc.Title, filter)
}

func (r *Recorder) Example(params map[string]string, index int) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	r.add("example %d {%s}", index, strings.Join(pairs, ", "))
}

func (r *Recorder) Successful(step string) { r.add("successful %s", step) }

func (r *Recorder) Failed(step string, err error) {
	r.add("failed %s: %v", step, cause(err))
}

func (r *Recorder) Pending(step string)      { r.add("pending %s", step) }
func (r *Recorder) NotPerformed(step string) { r.add("notPerformed %s", step) }
func (r *Recorder) Ignorable(step string)    { r.add("ignorable %s", step) }

func (r *Recorder) AfterScenario(sc *tree.Scenario, _ time.Duration) {
	r.add("afterScenario %s", sc.Title)
}

func (r *Recorder) StoryCancelled(s *tree.Story, _ time.Duration) {
	r.add("storyCancelled %s", s.Path)
}

func (r *Recorder) StoryTimeout(s *tree.Story, timeout time.Duration) {
	r.add("storyTimeout %s after %s", s.Path, timeout)
}

func (r *Recorder) AfterStory(s *tree.Story, given bool) {
	if given {
		r.add("afterGivenStory %s", s.Path)
		return
	}
	r.add("afterStory %s", s.Path)
}

// cause strips the STEP_FAILED wrapper so recordings do not carry
// correlation ids.
func cause(err error) error {
	if e, ok := err.(*Error); ok && e.Code == ErrCodeStepFailed && e.Err != nil {
		return e.Err
	}
	return err
}
