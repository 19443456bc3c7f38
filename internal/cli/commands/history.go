package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/scrape/pkg/output"
	"github.com/ccollicutt/scrape/pkg/store"
)

// HistoryOptions holds command-line options for the history command.
type HistoryOptions struct {
	Limit int
	ID    int64
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history <db-file>",
		Short: "List runs recorded with --record",
		Long: `List the runs recorded in a history database by analyze --record and
bench --record, newest first. With --id, show the per-category results of
one run.`,
		Example: `  scrape history history.db
  scrape history --id 3 history.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to list (0 for all)")
	cmd.Flags().Int64Var(&opts.ID, "id", 0, "Show one run in detail")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	ctx := commandContext(cmd)

	// store.Open creates a missing database; history only reads.
	if _, err := os.Stat(args[0]); err != nil {
		return fmt.Errorf("history database: %w", err)
	}

	s, err := store.Open(args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	w := cmd.OutOrStdout()

	if opts.ID != 0 {
		run, err := s.GetRun(ctx, opts.ID)
		if err != nil {
			return err
		}
		return writeRun(w, run)
	}

	runs, err := s.ListRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	table := &output.Table{
		Headers:    []string{"id", "started", "kind", "strategy", "lines", "matched", "duration", "sources"},
		RightAlign: map[int]bool{0: true, 4: true, 5: true, 6: true},
	}
	for _, r := range runs {
		table.Rows = append(table.Rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Local().Format(time.DateTime),
			runKind(r),
			r.Strategy,
			strconv.FormatUint(r.TotalLines, 10),
			strconv.FormatUint(r.MatchedLines, 10),
			r.Duration.Round(time.Millisecond).String(),
			strings.Join(r.Sources, ","),
		})
	}
	return table.Render(w)
}

func writeRun(w io.Writer, run store.Run) error {
	fmt.Fprintf(w, "Run %d (%s)\n", run.ID, runKind(run))
	fmt.Fprintf(w, "  Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Strategy: %s\n", run.Strategy)
	fmt.Fprintf(w, "  Sources:  %s\n", strings.Join(run.Sources, ", "))
	fmt.Fprintf(w, "  Lines:    %d total, %d matched, %d skipped\n", run.TotalLines, run.MatchedLines, run.SkippedLines)
	fmt.Fprintf(w, "  Duration: %s\n\n", run.Duration)

	table := &output.Table{
		Headers:    []string{"category", "matches", "min", "max", "sum"},
		RightAlign: map[int]bool{1: true, 2: true, 3: true, 4: true},
	}
	for _, c := range run.Categories {
		table.Rows = append(table.Rows, []string{
			c.Name,
			strconv.FormatUint(c.Matches, 10),
			optionalCell(c.Min),
			optionalCell(c.Max),
			optionalCell(c.Sum),
		})
	}
	return table.Render(w)
}

func runKind(r store.Run) string {
	if r.Interrupted {
		return r.Kind + " (interrupted)"
	}
	return r.Kind
}

func optionalCell(v *uint64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(*v, 10)
}
