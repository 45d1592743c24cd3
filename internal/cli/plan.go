package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/storyline/internal/tree"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	project projectFlags
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan [stories...]",
		Short: "Show the performable tree without running it",
		Long: `Build the performable tree of the stories and print it.

The plan shows the runs each scenario expands to, the steps bound to each
run, which steps are pending, and what the meta filters exclude.

Example:
  storyline plan --steps steps.yaml stories/
  storyline plan --filter "-skip" --format json stories/login.story`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return planStories(opts, args, cmd)
		},
	}

	opts.project.bind(cmd)
	return cmd
}

func planStories(opts *PlanOptions, args []string, cmd *cobra.Command) error {
	logger := newLogger(opts.Verbose, cmd.ErrOrStderr())
	out := formatter(opts.RootOptions, cmd)

	cfg, err := opts.project.config(cmd)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.Stories
	}
	paths, err := findStories(patterns)
	if err != nil {
		return err
	}
	t, err := opts.project.buildTree(cfg, paths, logger)
	if err != nil {
		return err
	}

	if out.Format == "text" {
		if err := tree.Dump(cmd.OutOrStdout(), t); err != nil {
			return WrapExitError(ExitCommandError, "failed to write plan", err)
		}
		return nil
	}
	views := make([]tree.View, len(t.Stories))
	for i, s := range t.Stories {
		views[i] = tree.ToView(s)
	}
	return out.Success(views)
}
