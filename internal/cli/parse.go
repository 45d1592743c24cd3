package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/storyline/internal/story"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	project projectFlags
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <story>...",
		Short: "Parse stories and print their structure",
		Long: `Parse story files and print the parsed model: meta, narrative,
lifecycle, given stories, scenarios and examples tables.

Text output is YAML.

Example:
  storyline parse stories/login.story
  storyline parse --locale de --format json geschichten/anmeldung.story`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return parseCommand(opts, args, cmd)
		},
	}

	opts.project.bind(cmd)
	return cmd
}

func parseCommand(opts *ParseOptions, args []string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	cfg, err := opts.project.config(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	parser, err := newParser(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load keywords", err)
	}
	paths, err := findStories(args)
	if err != nil {
		return err
	}
	stories, err := parseStories(parser, paths)
	if err != nil {
		return err
	}

	views := make([]story.View, len(stories))
	for i, s := range stories {
		views[i] = story.ToView(s)
	}
	if out.Format != "text" {
		return out.Success(views)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(views); err != nil {
		return WrapExitError(ExitCommandError, "failed to write stories", err)
	}
	if err := enc.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write stories", fmt.Errorf("flush: %w", err))
	}
	return nil
}
