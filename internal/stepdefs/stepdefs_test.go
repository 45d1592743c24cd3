package stepdefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyline/internal/steps"
)

func writeDefs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "steps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const houseDefs = `source: house
env:
  HOUSE_COLOR: red
steps:
  - type: given
    pattern: a house with $doors doors
    shell: test "$1" = "3" && test "$STEP_DOORS" = "3" && test "$HOUSE_COLOR" = red
  - type: then
    pattern: the house falls down
    shell: echo "it fell" >&2; exit 3
  - type: when
    pattern: I wait
    shell: sleep 5
    priority: 2
`

func TestLoad(t *testing.T) {
	f, err := Load(writeDefs(t, houseDefs))
	require.NoError(t, err)

	assert.Equal(t, "house", f.Source)
	require.Len(t, f.Steps, 3)

	cs := f.Candidates()
	require.Len(t, cs, 3)
	assert.Equal(t, steps.Given, cs[0].Type)
	assert.Equal(t, steps.Then, cs[1].Type)
	assert.Equal(t, steps.When, cs[2].Type)
	assert.Equal(t, 2, cs[2].Priority)
	assert.Equal(t, "house", cs[0].Source)
}

func TestLoad_DefaultSource(t *testing.T) {
	f, err := Load(writeDefs(t, "steps:\n  - type: any\n    pattern: x\n    command: ['true']\n"))
	require.NoError(t, err)
	assert.Equal(t, "steps.yaml", f.Source)
	assert.Equal(t, steps.Any, f.Candidates()[0].Type)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown field", content: "steps:\n  - type: given\n    pattern: x\n    comand: [true]\n"},
		{name: "no steps", content: "source: empty\n"},
		{name: "unknown type", content: "steps:\n  - type: maybe\n    pattern: x\n    command: ['true']\n"},
		{name: "missing pattern", content: "steps:\n  - type: given\n    command: ['true']\n"},
		{name: "no command", content: "steps:\n  - type: given\n    pattern: x\n"},
		{name: "both command and shell", content: "steps:\n  - type: given\n    pattern: x\n    command: ['true']\n    shell: 'true'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeDefs(t, tt.content))
			require.Error(t, err)
			assert.True(t, IsInvalidDefinition(err))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func resolve(t *testing.T, r *steps.Registry, text string) steps.Resolution {
	t.Helper()
	res := r.Resolve(text, "")
	require.NotNil(t, res.Candidate, "step %q should match", text)
	return res
}

func TestCommands(t *testing.T) {
	r := steps.NewRegistry()
	require.NoError(t, Register(r, writeDefs(t, houseDefs)))

	t.Run("arguments and environment", func(t *testing.T) {
		res := resolve(t, r, "Given a house with 3 doors")
		assert.NoError(t, res.Candidate.Run(context.Background(), res.Args))
	})

	t.Run("wrong argument fails", func(t *testing.T) {
		res := resolve(t, r, "Given a house with 4 doors")
		err := res.Candidate.Run(context.Background(), res.Args)
		require.Error(t, err)
		assert.True(t, IsCommandFailed(err))
	})

	t.Run("output is kept", func(t *testing.T) {
		res := resolve(t, r, "Then the house falls down")
		err := res.Candidate.Run(context.Background(), res.Args)
		require.Error(t, err)
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "it fell", se.Output)
	})

	t.Run("cancellation kills the command", func(t *testing.T) {
		res := resolve(t, r, "When I wait")
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := res.Candidate.Run(ctx, res.Args)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 3*time.Second)
	})
}

func TestRegister_Duplicate(t *testing.T) {
	r := steps.NewRegistry()
	path := writeDefs(t, houseDefs)
	require.NoError(t, Register(r, path))

	err := Register(r, path)
	require.Error(t, err)
	assert.True(t, steps.IsDuplicateCandidate(err))
}

func TestWorkDir(t *testing.T) {
	f := &File{path: "/defs/steps.yaml"}
	assert.Equal(t, "/defs", f.WorkDir())

	f.Dir = "scripts"
	assert.Equal(t, filepath.Join("/defs", "scripts"), f.WorkDir())

	f.Dir = "/abs"
	assert.Equal(t, "/abs", f.WorkDir())
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "DOORS", envName("doors"))
	assert.Equal(t, "HOUSE_NAME", envName("house-name"))
	assert.Equal(t, "N2", envName("n2"))
}
