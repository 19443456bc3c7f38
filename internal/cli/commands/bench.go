package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/scrape/pkg/bench"
	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/output"
	"github.com/ccollicutt/scrape/pkg/parser"
	"github.com/ccollicutt/scrape/pkg/scrape"
	"github.com/ccollicutt/scrape/pkg/store"
)

// BenchOptions holds command-line options for the bench command.
type BenchOptions struct {
	ScanOptions

	Runs      int
	Baseline  string
	Candidate string
	Record    string
}

// NewBenchCommand creates the bench command.
func NewBenchCommand() *cobra.Command {
	opts := &BenchOptions{}

	cmd := &cobra.Command{
		Use:   "bench <log-file>...",
		Short: "Time the matching strategies against each other",
		Long: `Run each matching strategy several times over the same input and compare.

Every pass must produce the same statistics; the command exits 1 if they
do not. The summary reports the mean time the candidate strategy saves
per pass relative to the baseline.

Exit codes:
  0 - Strategies agree
  1 - Strategies produced different statistics
  2 - Configuration or runtime error`,
		Example: `  scrape bench server.log
  scrape bench --runs 10 --record history.db server.log`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, args, opts)
		},
	}

	addScanFlags(cmd, &opts.ScanOptions)

	cmd.Flags().IntVarP(&opts.Runs, "runs", "n", bench.DefaultRuns, "Passes per strategy")
	cmd.Flags().StringVar(&opts.Baseline, "baseline", string(classifier.StrategySequential), "Baseline strategy")
	cmd.Flags().StringVar(&opts.Candidate, "candidate", string(classifier.StrategyCombined), "Candidate strategy")
	cmd.Flags().StringVar(&opts.Record, "record", "", "Append the candidate's result to this SQLite history database")

	return cmd
}

func runBench(cmd *cobra.Command, args []string, opts *BenchOptions) error {
	ctx := commandContext(cmd)

	logger, err := commandLogger(cmd)
	if err != nil {
		return err
	}

	if opts.Runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", opts.Runs)
	}
	baseline, err := classifier.ParseStrategy(opts.Baseline)
	if err != nil {
		return fmt.Errorf("--baseline: %w", err)
	}
	candidate, err := classifier.ParseStrategy(opts.Candidate)
	if err != nil {
		return fmt.Errorf("--candidate: %w", err)
	}

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}

	files, err := expandInputs(args)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f == parser.Stdin {
			return fmt.Errorf("bench reads its input several times and cannot use stdin")
		}
	}

	open := func() (parser.LineSource, error) {
		return newSource(cmd, cfg, files), nil
	}

	result, err := bench.Run(ctx, cfg.PatternSet(), open, bench.Options{
		Runs:          opts.Runs,
		Baseline:      baseline,
		Candidate:     candidate,
		DriverOptions: driverOptions(cfg, logger),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	if err := writeBench(cmd.OutOrStdout(), result, files); err != nil {
		return err
	}

	if opts.Record != "" {
		report := output.NewReport(&scrape.Result{
			Snapshot: result.Candidate.Snapshot,
			Strategy: result.Candidate.Strategy,
			Sources:  files,
			Duration: result.Candidate.Mean,
		}, opts.ConfigPath, cfg.TopK)
		if err := recordRun(context.WithoutCancel(ctx), opts.Record, store.KindBench, report, logger); err != nil {
			return err
		}
	}

	if !result.Agree {
		ExitCode = ExitDisagree
	}
	return nil
}

func writeBench(w io.Writer, result *bench.Result, files []string) error {
	snap := result.Candidate.Snapshot

	if _, err := fmt.Fprintf(w, "%d file(s), %d lines, %d runs per strategy\n\n",
		len(files), snap.TotalLines, len(result.Candidate.Durations)); err != nil {
		return err
	}

	table := &output.Table{
		Headers:    []string{"strategy", "mean", "median", "p90", "min", "max"},
		RightAlign: map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true},
	}
	for _, t := range []bench.StrategyTiming{result.Baseline, result.Candidate} {
		table.Rows = append(table.Rows, []string{
			string(t.Strategy),
			seconds(t.Mean),
			seconds(t.Median),
			seconds(t.P90),
			seconds(t.Min),
			seconds(t.Max),
		})
	}
	if err := table.Render(w); err != nil {
		return err
	}

	agreement := "strategies agree"
	if !result.Agree {
		agreement = "STRATEGIES DISAGREE: results differ between passes"
	}
	_, err := fmt.Fprintf(w, "\n%s\n%s\n", result.Summary(), agreement)
	return err
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
