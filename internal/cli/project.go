package cli

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/storyline/internal/config"
	"github.com/roach88/storyline/internal/stepdefs"
	"github.com/roach88/storyline/internal/steps"
	"github.com/roach88/storyline/internal/story"
	"github.com/roach88/storyline/internal/tree"
)

// StoryExt is the extension of story files found in directories.
const StoryExt = ".story"

// projectFlags are the flags shared by commands that build a performable
// tree. Flags override the configuration file.
type projectFlags struct {
	configPath string
	steps      []string
	filters    []string
	maxDepth   int
	locale     string
	root       string
}

func (p *projectFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&p.configPath, "config", "c", "", "configuration file (.yaml or .cue)")
	f.StringArrayVarP(&p.steps, "steps", "s", nil, "step definitions file (repeatable)")
	f.StringArrayVarP(&p.filters, "filter", "f", nil, "meta filter (repeatable)")
	f.IntVar(&p.maxDepth, "max-depth", tree.DefaultMaxDepth, "maximum given story nesting")
	f.StringVar(&p.locale, "locale", config.DefaultLocale, "keyword locale")
	f.StringVar(&p.root, "root", "", "directory given story paths are resolved against (default: working directory)")
}

// config loads the configuration file, if any, and applies the flags the
// user set.
func (p *projectFlags) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if p.configPath != "" {
		var err error
		cfg, err = config.Load(p.configPath)
		if err != nil {
			return config.Config{}, err
		}
	}
	f := cmd.Flags()
	if f.Changed("steps") {
		cfg.StepDefinitions = append(cfg.StepDefinitions, p.steps...)
	}
	if f.Changed("filter") {
		cfg.MetaFilters = p.filters
	}
	if f.Changed("max-depth") {
		cfg.MaxGivenStoryDepth = p.maxDepth
	}
	if f.Changed("locale") {
		cfg.Locale = p.locale
	}
	return cfg, nil
}

// newParser returns a story parser for the configured keywords.
func newParser(cfg config.Config) (*story.Parser, error) {
	kw, err := cfg.Keywords()
	if err != nil {
		return nil, err
	}
	return story.NewParser(story.WithKeywords(kw)), nil
}

// buildTree parses the stories, registers the step definitions and builds
// the performable tree.
func (p *projectFlags) buildTree(cfg config.Config, paths []string, logger *slog.Logger) (*tree.Tree, error) {
	parser, err := newParser(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load keywords", err)
	}
	registry := steps.NewRegistry(steps.WithRegistryKeywords(parser.Keywords()))
	if err := stepdefs.Register(registry, cfg.StepDefinitions...); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load step definitions", err)
	}
	filters, err := cfg.Filters()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid meta filter", err)
	}

	stories, err := parseStories(parser, paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("stories parsed", "stories", len(stories), "steps", len(registry.Candidates()))

	b := tree.NewBuilder(registry,
		tree.WithParser(parser),
		tree.WithLoader(tree.DirLoader{Root: p.root}),
		tree.WithFilters(filters...),
		tree.WithMaxDepth(cfg.MaxGivenStoryDepth),
		tree.WithLogger(logger),
	)
	t, err := b.Build(stories)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build stories", err)
	}
	return t, nil
}

func parseStories(parser *story.Parser, paths []string) ([]*story.Story, error) {
	stories := make([]*story.Story, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(filepath.FromSlash(path))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read story", err)
		}
		s, err := parser.Parse(string(data), path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to parse %s", path), err)
		}
		stories = append(stories, s)
	}
	return stories, nil
}

// findStories expands story arguments. Directories are walked for *.story
// files; anything else is a glob that must match at least one file. Paths
// are returned with forward slashes, without duplicates, in argument order.
func findStories(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, NewExitError(ExitCommandError, "no stories given")
	}
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		p = filepath.ToSlash(filepath.Clean(p))
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			err := filepath.WalkDir(pattern, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.HasSuffix(d.Name(), StoryExt) {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to walk %s", pattern), err)
			}
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid story pattern %q", pattern), err)
		}
		found := false
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				add(m)
				found = true
			}
		}
		if !found {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("no stories match %q", pattern))
		}
	}
	return paths, nil
}

// newLogger returns a text logger on w at info level, debug with --verbose.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
