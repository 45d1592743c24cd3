package stepdefs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/roach88/storyline/internal/steps"
)

// outputLimit bounds the command output kept in errors.
const outputLimit = 4096

// waitDelay bounds how long a killed command's pipes are drained.
const waitDelay = time.Second

type command struct {
	def Definition
	dir string
	env map[string]string
}

func (c *command) run(ctx context.Context, args steps.Args) error {
	var argv []string
	if c.def.Shell != "" {
		argv = append([]string{"sh", "-c", c.def.Shell, "storyline"}, args.Values()...)
	} else {
		argv = append(append([]string(nil), c.def.Command...), args.Values()...)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(), c.environ(args)...)
	cmd.WaitDelay = waitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{
			Code:    ErrCodeCommandFailed,
			Message: fmt.Sprintf("%q", c.def.Pattern),
			Output:  tail(out.String()),
			Err:     err,
		}
	}
	return nil
}

// environ returns the file's variables and one STEP_<NAME> variable per
// captured value.
func (c *command) environ(args steps.Args) []string {
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var env []string
	for _, k := range keys {
		env = append(env, k+"="+c.env[k])
	}
	values := args.Values()
	for i, name := range args.Names() {
		if i < len(values) {
			env = append(env, "STEP_"+envName(name)+"="+values[i])
		}
	}
	return env
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, name)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > outputLimit {
		return "..." + s[len(s)-outputLimit:]
	}
	return s
}
