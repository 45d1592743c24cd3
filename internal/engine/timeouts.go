package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultStoryTimeout applies when no timeout is configured for a story.
const DefaultStoryTimeout = 300 * time.Second

// Timeouts resolves the deadline of each story from its path.
//
// The specification is a comma-separated list. A bare number of seconds
// sets the default (the last one wins); "pattern:seconds" sets the timeout
// of matching paths, first match in declaration order wins. A pattern made
// only of path characters and '*' is a glob in which '*' matches anything,
// slashes included; any other pattern is a regular expression. Patterns
// must match the whole path. Zero means no timeout.
type Timeouts struct {
	def   time.Duration
	rules []timeoutRule
}

type timeoutRule struct {
	pattern string
	re      *regexp.Regexp
	timeout time.Duration
}

var globPattern = regexp.MustCompile(`^[\w/.*:-]+$`)

// ParseTimeouts parses a timeout specification such as
// "60,**/*short*:1,slow/.*\.story:0".
func ParseTimeouts(spec string) (*Timeouts, error) {
	t := &Timeouts{def: DefaultStoryTimeout}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		i := strings.LastIndex(entry, ":")
		if i < 0 {
			d, err := seconds(entry)
			if err != nil {
				return nil, err
			}
			t.def = d
			continue
		}
		pattern, secs := strings.TrimSpace(entry[:i]), entry[i+1:]
		if pattern == "" {
			return nil, &Error{Code: ErrCodeInvalidTimeouts, Message: fmt.Sprintf("empty pattern in %q", entry)}
		}
		d, err := seconds(secs)
		if err != nil {
			return nil, err
		}
		re, err := compilePathPattern(pattern)
		if err != nil {
			return nil, &Error{Code: ErrCodeInvalidTimeouts, Message: fmt.Sprintf("invalid pattern %q", pattern), Err: err}
		}
		t.rules = append(t.rules, timeoutRule{pattern: pattern, re: re, timeout: d})
	}
	return t, nil
}

func seconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, &Error{Code: ErrCodeInvalidTimeouts, Message: fmt.Sprintf("timeout %q is not a number of seconds", s)}
	}
	return time.Duration(n) * time.Second, nil
}

func compilePathPattern(pattern string) (*regexp.Regexp, error) {
	if globPattern.MatchString(pattern) {
		parts := strings.Split(pattern, "*")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	}
	return regexp.Compile("^(?:" + pattern + ")$")
}

// For returns the timeout for a story path. Zero means unlimited.
func (t *Timeouts) For(path string) time.Duration {
	if t == nil {
		return DefaultStoryTimeout
	}
	for _, r := range t.rules {
		if r.re.MatchString(path) {
			return r.timeout
		}
	}
	return t.def
}

// Default returns the timeout used when no pattern matches.
func (t *Timeouts) Default() time.Duration {
	if t == nil {
		return DefaultStoryTimeout
	}
	return t.def
}
