package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/storyline/internal/config"
	"github.com/roach88/storyline/internal/engine"
	"github.com/roach88/storyline/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	project projectFlags

	threads          int
	timeouts         string
	ignoreFailures   bool
	failOnTimeout    bool
	failOnPending    bool
	dryRun           bool
	skipAfterFailure bool
	database         string
	grace            time.Duration

	// IDGenerator overrides the step failure id generator (for testing).
	IDGenerator engine.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [stories...]",
		Short: "Run stories",
		Long: `Run stories against step definitions.

Arguments are story files, globs or directories (searched for *.story).
Without arguments the stories listed in the configuration file run.

Example:
  storyline run --steps steps.yaml stories/
  storyline run -c storyline.cue --filter "+theme smoke" --threads 4
  storyline run --steps steps.yaml --timeouts "60,**/slow/*:600" --db history.db stories/`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStories(opts, args, cmd)
		},
	}

	opts.project.bind(cmd)
	f := cmd.Flags()
	f.IntVarP(&opts.threads, "threads", "t", config.DefaultThreads, "stories run concurrently")
	f.StringVar(&opts.timeouts, "timeouts", config.DefaultStoryTimeouts, `story timeouts in seconds, e.g. "60,**/slow/*:600"`)
	f.BoolVar(&opts.ignoreFailures, "ignore-failures", false, "run every story and report failures at the end")
	f.BoolVar(&opts.failOnTimeout, "fail-on-timeout", false, "treat timed out stories as failures")
	f.BoolVar(&opts.failOnPending, "fail-on-pending", false, "treat pending steps as failures")
	f.BoolVar(&opts.dryRun, "dry-run", false, "match steps without running them")
	f.BoolVar(&opts.skipAfterFailure, "skip-after-failure", false, "skip the scenarios after a failed one")
	f.StringVar(&opts.database, "db", "", "record the run in this SQLite history database")
	f.DurationVar(&opts.grace, "grace", engine.DefaultGracePeriod, "time a timed out story has to stop before it is abandoned")

	return cmd
}

// config merges the run flags the user set into the project configuration.
func (o *RunOptions) config(cmd *cobra.Command) (config.Config, error) {
	cfg, err := o.project.config(cmd)
	if err != nil {
		return config.Config{}, err
	}
	f := cmd.Flags()
	if f.Changed("threads") {
		cfg.Threads = o.threads
	}
	if f.Changed("timeouts") {
		cfg.StoryTimeouts = o.timeouts
	}
	if f.Changed("ignore-failures") {
		cfg.IgnoreFailureInStories = o.ignoreFailures
	}
	if f.Changed("fail-on-timeout") {
		cfg.FailOnStoryTimeout = o.failOnTimeout
	}
	if f.Changed("fail-on-pending") {
		cfg.FailOnPending = o.failOnPending
	}
	if f.Changed("dry-run") {
		cfg.DryRun = o.dryRun
	}
	if f.Changed("skip-after-failure") {
		cfg.SkipScenariosAfterFailure = o.skipAfterFailure
	}
	if f.Changed("db") {
		cfg.HistoryDB = o.database
	}
	return cfg, cfg.Validate()
}

// runSummary is the structured result of a run.
type runSummary struct {
	BatchID      string         `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
	Stories      []storySummary `json:"stories" yaml:"stories"`
	Successful   int            `json:"successful" yaml:"successful"`
	Failed       int            `json:"failed" yaml:"failed"`
	Pending      int            `json:"pending" yaml:"pending"`
	TimedOut     int            `json:"timed_out" yaml:"timed_out"`
	Excluded     int            `json:"excluded" yaml:"excluded"`
	NotPerformed int            `json:"not_performed" yaml:"not_performed"`
	Cancelled    int            `json:"cancelled" yaml:"cancelled"`
	Duration     string         `json:"duration" yaml:"duration"`
}

type storySummary struct {
	Path     string `json:"path" yaml:"path"`
	Status   string `json:"status" yaml:"status"`
	Duration string `json:"duration" yaml:"duration"`
	Failure  string `json:"failure,omitempty" yaml:"failure,omitempty"`
}

func summarize(res *engine.BatchResult) runSummary {
	s := runSummary{
		Stories:      make([]storySummary, 0, len(res.Stories)),
		Successful:   res.Count(engine.StatusSuccessful),
		Failed:       res.Count(engine.StatusFailed),
		Pending:      res.Count(engine.StatusPending),
		TimedOut:     res.Count(engine.StatusTimedOut),
		Excluded:     res.Count(engine.StatusExcluded),
		NotPerformed: res.Count(engine.StatusNotPerformed),
		Cancelled:    res.Count(engine.StatusCancelled),
		Duration:     res.Duration.Round(time.Millisecond).String(),
	}
	for _, r := range res.Stories {
		ss := storySummary{
			Path:     r.Path,
			Status:   string(r.Status),
			Duration: r.Duration.Round(time.Millisecond).String(),
		}
		if r.Failure != nil {
			ss.Failure = r.Failure.Error()
		}
		s.Stories = append(s.Stories, ss)
	}
	return s
}

func (s runSummary) String() string {
	return fmt.Sprintf("Stories: %d (successful %d, failed %d, pending %d, timed out %d, excluded %d, not performed %d, cancelled %d) in %s",
		len(s.Stories), s.Successful, s.Failed, s.Pending, s.TimedOut, s.Excluded, s.NotPerformed, s.Cancelled, s.Duration)
}

func runStories(opts *RunOptions, args []string, cmd *cobra.Command) error {
	logger := newLogger(opts.Verbose, cmd.ErrOrStderr())
	out := formatter(opts.RootOptions, cmd)

	cfg, err := opts.config(cmd)
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
	controls, err := cfg.Controls()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	reports := newTextReports(cmd.OutOrStdout())
	runnerOpts := []engine.RunnerOption{
		engine.WithControls(controls),
		engine.WithReporterFactory(reports.reporter),
		engine.WithGracePeriod(opts.grace),
		engine.WithFilterDescription(cfg.FilterDescription()),
		engine.WithLogger(logger),
	}
	if opts.IDGenerator != nil {
		runnerOpts = append(runnerOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	runner := engine.NewRunner(runnerOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, stopping stories", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	result, runErr := runner.RunBatch(ctx, t)
	summary := summarize(result)

	if cfg.HistoryDB != "" {
		id, err := recordBatch(cfg, result, runErr, logger)
		if err != nil {
			return err
		}
		summary.BatchID = id
	}

	if out.Format == "text" {
		if err := reports.writeTo(cmd.OutOrStdout(), t); err != nil {
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
	}
	if err := out.Success(summary); err != nil {
		return WrapExitError(ExitCommandError, "failed to write summary", err)
	}

	switch {
	case runErr != nil:
		return WrapExitError(ExitFailure, "stories failed", runErr)
	case result.Err() != nil:
		return WrapExitError(ExitFailure, "stories failed", result.Err())
	case ctx.Err() != nil:
		return NewExitError(ExitFailure, "run interrupted")
	}
	return nil
}

// recordBatch writes the batch to the history database and returns its id.
// The write does not use the run context: an interrupted run is recorded.
func recordBatch(cfg config.Config, result *engine.BatchResult, runErr error, logger *slog.Logger) (string, error) {
	st, err := store.Open(cfg.HistoryDB)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing history database", "error", closeErr)
		}
	}()

	b := store.FromResult(store.NewBatchID(), cfg.FilterDescription(), result, runErr)
	if err := st.WriteBatch(context.Background(), b); err != nil {
		return "", WrapExitError(ExitCommandError, "failed to record batch", err)
	}
	logger.Info("batch recorded", "batch", b.ID, "db", cfg.HistoryDB)
	return b.ID, nil
}
