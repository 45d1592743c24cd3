package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/storyline/internal/config"
	"github.com/roach88/storyline/internal/store"
)

// DefaultHistoryLimit is the number of entries history shows by default.
const DefaultHistoryLimit = 20

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database   string
	ConfigPath string
	Limit      int
	Batch      string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [story]",
		Short: "Show recorded runs",
		Long: `Show runs recorded with run --db.

Without arguments the latest batches are listed, newest first. With a story
path the outcomes of that story are listed. With --batch the stories of one
batch are shown.

Example:
  storyline history --db history.db
  storyline history --db history.db stories/login.story --limit 5
  storyline history --db history.db --batch 0190a5b2-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite history database")
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file naming the history database")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", DefaultHistoryLimit, "maximum entries to show")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "show the stories of one batch")

	return cmd
}

// batchSummary is the structured form of a recorded batch.
type batchSummary struct {
	ID       string           `json:"id" yaml:"id"`
	Started  time.Time        `json:"started" yaml:"started"`
	Duration string           `json:"duration" yaml:"duration"`
	Status   string           `json:"status" yaml:"status"`
	Filter   string           `json:"filter,omitempty" yaml:"filter,omitempty"`
	Total    int              `json:"total" yaml:"total"`
	Failed   int              `json:"failed" yaml:"failed"`
	Stories  []outcomeSummary `json:"stories,omitempty" yaml:"stories,omitempty"`
}

type outcomeSummary struct {
	BatchID  string `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
	Path     string `json:"path" yaml:"path"`
	Status   string `json:"status" yaml:"status"`
	Duration string `json:"duration" yaml:"duration"`
	Failure  string `json:"failure,omitempty" yaml:"failure,omitempty"`
}

func toBatchSummary(b store.Batch) batchSummary {
	s := batchSummary{
		ID:       b.ID,
		Started:  b.Started,
		Duration: b.Duration.String(),
		Status:   b.Status,
		Filter:   b.Filter,
		Total:    b.Total,
		Failed:   b.Failed,
	}
	for _, o := range b.Stories {
		s.Stories = append(s.Stories, toOutcomeSummary(o))
	}
	return s
}

func toOutcomeSummary(o store.StoryOutcome) outcomeSummary {
	return outcomeSummary{
		BatchID:  o.BatchID,
		Path:     o.Path,
		Status:   o.Status,
		Duration: o.Duration.String(),
		Failure:  o.Failure,
	}
}

func (o *HistoryOptions) database() (string, error) {
	if o.Database != "" {
		return o.Database, nil
	}
	if o.ConfigPath != "" {
		cfg, err := config.Load(o.ConfigPath)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		if cfg.HistoryDB != "" {
			return cfg.HistoryDB, nil
		}
	}
	return "", NewExitError(ExitCommandError, "no history database: use --db or history_db in the configuration")
}

func showHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	logger := newLogger(opts.Verbose, cmd.ErrOrStderr())
	out := formatter(opts.RootOptions, cmd)

	if opts.Limit < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("limit must be at least 1, got %d", opts.Limit))
	}
	path, err := opts.database()
	if err != nil {
		return err
	}
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing history database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.Batch != "":
		return showBatch(ctx, st, opts.Batch, out)
	case len(args) == 1:
		return showStory(ctx, st, args[0], opts.Limit, out)
	}

	batches, err := st.ListBatches(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	summaries := make([]batchSummary, len(batches))
	for i, b := range batches {
		summaries[i] = toBatchSummary(b)
	}
	if out.Format != "text" {
		return out.Success(summaries)
	}
	if len(summaries) == 0 {
		return out.Success("No batches recorded.")
	}
	return writeTable(out.Writer, []string{"BATCH", "STARTED", "STATUS", "STORIES", "FAILED", "DURATION", "FILTER"}, func(row func(...any)) {
		for _, b := range summaries {
			row(b.ID, b.Started.Local().Format(time.DateTime), b.Status, b.Total, b.Failed, b.Duration, b.Filter)
		}
	})
}

func showBatch(ctx context.Context, st *store.Store, id string, out *OutputFormatter) error {
	b, err := st.ReadBatch(ctx, id)
	if errors.Is(err, store.ErrBatchNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("batch %s not found", id), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	s := toBatchSummary(b)
	if out.Format != "text" {
		return out.Success(s)
	}
	fmt.Fprintf(out.Writer, "Batch %s %s (%d stories, %d failed) in %s\n", s.ID, s.Status, s.Total, s.Failed, s.Duration)
	return writeOutcomes(out.Writer, s.Stories, false)
}

func showStory(ctx context.Context, st *store.Store, path string, limit int, out *OutputFormatter) error {
	outcomes, err := st.StoryHistory(ctx, path, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	summaries := make([]outcomeSummary, len(outcomes))
	for i, o := range outcomes {
		summaries[i] = toOutcomeSummary(o)
	}
	if out.Format != "text" {
		return out.Success(summaries)
	}
	if len(summaries) == 0 {
		return out.Success(fmt.Sprintf("No runs of %s recorded.", path))
	}
	return writeOutcomes(out.Writer, summaries, true)
}

func writeOutcomes(w io.Writer, outcomes []outcomeSummary, withBatch bool) error {
	header := []string{"STORY", "STATUS", "DURATION", "FAILURE"}
	if withBatch {
		header = append([]string{"BATCH"}, header...)
	}
	return writeTable(w, header, func(row func(...any)) {
		for _, o := range outcomes {
			if withBatch {
				row(o.BatchID, o.Path, o.Status, o.Duration, firstLine(o.Failure))
				continue
			}
			row(o.Path, o.Status, o.Duration, firstLine(o.Failure))
		}
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func writeTable(w io.Writer, header []string, rows func(row func(...any))) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	line := func(cells ...any) {
		for i, c := range cells {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c)
		}
		fmt.Fprintln(tw)
	}
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	line(cells...)
	rows(line)
	return tw.Flush()
}
