package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeouts(t *testing.T) {
	tests := []struct {
		name string
		spec string
		path string
		want time.Duration
	}{
		{name: "empty uses default", spec: "", path: "a.story", want: DefaultStoryTimeout},
		{name: "bare default", spec: "60", path: "a.story", want: 60 * time.Second},
		{name: "last default wins", spec: "10, 20", path: "a.story", want: 20 * time.Second},
		{name: "glob match", spec: "60,**/*short*:1", path: "stories/a_short.story", want: time.Second},
		{name: "glob miss", spec: "60,**/*short*:1", path: "stories/long.story", want: 60 * time.Second},
		{name: "glob is anchored", spec: "short:1", path: "stories/short.story", want: DefaultStoryTimeout},
		{name: "dots are literal in globs", spec: "a.story:5", path: "axstory", want: DefaultStoryTimeout},
		{name: "regex", spec: `stories/(fast|quick)\.story:5`, path: "stories/quick.story", want: 5 * time.Second},
		{name: "first match wins", spec: "**/*short*:1,**/*:2", path: "x/short.story", want: time.Second},
		{name: "zero is unlimited", spec: "slow.story:0", path: "slow.story", want: 0},
		{name: "colon in pattern", spec: "c:/stories/*:7", path: "c:/stories/a.story", want: 7 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeouts, err := ParseTimeouts(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, timeouts.For(tt.path))
		})
	}
}

func TestParseTimeouts_Invalid(t *testing.T) {
	for _, spec := range []string{"abc", "-1", "a.story:x", ":5", "(:3", "a.story:-2"} {
		t.Run(spec, func(t *testing.T) {
			_, err := ParseTimeouts(spec)
			require.Error(t, err)
			assert.True(t, IsInvalidTimeouts(err))
		})
	}
}

func TestTimeouts_Nil(t *testing.T) {
	var timeouts *Timeouts
	assert.Equal(t, DefaultStoryTimeout, timeouts.For("a.story"))
	assert.Equal(t, DefaultStoryTimeout, timeouts.Default())
}
