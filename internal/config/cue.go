package config

import (
	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ParseCUE evaluates CUE configuration against the embedded schema. The
// file's top-level fields are the configuration; constraints such as
// threads >= 1 are checked by CUE and unknown fields are rejected.
func ParseCUE(data []byte, name string) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, cueError(err, "schema.cue")
	}

	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return Config{}, cueError(err, name)
	}

	v = schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, cueError(err, name)
	}

	var c Config
	if err := v.Decode(&c); err != nil {
		return Config{}, cueError(err, name)
	}
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, withFile(err, name)
	}
	return c, nil
}

// cueError keeps the position of the first CUE error.
func cueError(err error, file string) error {
	ce := &Error{Code: ErrCodeInvalidConfig, Message: "invalid CUE configuration", File: file, Err: err}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return ce
	}
	if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
