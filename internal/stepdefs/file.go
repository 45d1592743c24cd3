package stepdefs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/storyline/internal/steps"
)

// File is a parsed definitions file.
type File struct {
	// Source names the definitions in duplicate reports. Defaults to the
	// file's base name.
	Source string `yaml:"source,omitempty"`

	// Dir is the working directory of commands, relative to the file.
	Dir string `yaml:"dir,omitempty"`

	// Env is added to the environment of every command.
	Env map[string]string `yaml:"env,omitempty"`

	Steps []Definition `yaml:"steps"`

	// path is where the file was loaded from.
	path string
}

// Definition binds one pattern to a command. Exactly one of Command and
// Shell is set.
type Definition struct {
	// Type is given, when, then or any.
	Type string `yaml:"type"`

	Pattern string `yaml:"pattern"`

	// Priority orders candidates matching the same step. Higher wins.
	Priority int `yaml:"priority,omitempty"`

	// Command is an argv; captured values are appended to it.
	Command []string `yaml:"command,omitempty"`

	// Shell is a script run with sh -c; captured values are $1..$n.
	Shell string `yaml:"shell,omitempty"`
}

var stepTypes = map[string]steps.Type{
	"given": steps.Given,
	"when":  steps.When,
	"then":  steps.Then,
	"any":   steps.Any,
}

// Load reads and parses a definitions file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or has invalid definitions.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step definitions: %w", err)
	}
	return Parse(data, path)
}

// Parse parses definitions. path locates the file for relative
// directories and error messages.
func Parse(data []byte, path string) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, &Error{Code: ErrCodeInvalidDefinition, Message: "failed to parse YAML", File: path, Err: err}
	}
	f.path = path
	if f.Source == "" {
		f.Source = filepath.Base(path)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	invalid := func(i int, format string, args ...any) error {
		return &Error{
			Code:    ErrCodeInvalidDefinition,
			Message: fmt.Sprintf("step %d: ", i+1) + fmt.Sprintf(format, args...),
			File:    f.path,
		}
	}
	if len(f.Steps) == 0 {
		return &Error{Code: ErrCodeInvalidDefinition, Message: "steps list is required and must be non-empty", File: f.path}
	}
	for i, d := range f.Steps {
		if _, ok := stepTypes[strings.ToLower(d.Type)]; !ok {
			return invalid(i, "unknown type %q", d.Type)
		}
		if strings.TrimSpace(d.Pattern) == "" {
			return invalid(i, "pattern is required")
		}
		switch {
		case len(d.Command) > 0 && d.Shell != "":
			return invalid(i, "command and shell are mutually exclusive")
		case len(d.Command) == 0 && d.Shell == "":
			return invalid(i, "one of command or shell is required")
		}
	}
	return nil
}

// WorkDir returns the directory commands run in.
func (f *File) WorkDir() string {
	base := filepath.Dir(f.path)
	switch {
	case f.Dir == "":
		return base
	case filepath.IsAbs(f.Dir):
		return f.Dir
	default:
		return filepath.Join(base, f.Dir)
	}
}

// Candidates returns one step candidate per definition.
func (f *File) Candidates() []steps.Candidate {
	out := make([]steps.Candidate, 0, len(f.Steps))
	for _, d := range f.Steps {
		c := &command{def: d, dir: f.WorkDir(), env: f.Env}
		out = append(out, steps.Candidate{
			Type:     stepTypes[strings.ToLower(d.Type)],
			Pattern:  d.Pattern,
			Priority: d.Priority,
			Source:   f.Source,
			Run:      c.run,
		})
	}
	return out
}

// Register loads each definitions file and registers its candidates.
func Register(r *steps.Registry, paths ...string) error {
	for _, p := range paths {
		f, err := Load(p)
		if err != nil {
			return err
		}
		if err := r.Register(f.Candidates()...); err != nil {
			return fmt.Errorf("register %s: %w", p, err)
		}
	}
	return nil
}
