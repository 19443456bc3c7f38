// Package bench times the matching strategies against each other over the
// same input and checks that they agree.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/parser"
	"github.com/ccollicutt/scrape/pkg/pattern"
	"github.com/ccollicutt/scrape/pkg/scrape"
	"github.com/ccollicutt/scrape/pkg/stats"
)

// DefaultRuns is the number of passes per strategy.
const DefaultRuns = 5

// SourceFactory opens a fresh source over the benchmark input.
type SourceFactory func() (parser.LineSource, error)

// Options configures a benchmark.
type Options struct {
	// Runs is the number of passes per strategy.
	Runs int

	// Baseline and Candidate are the two strategies compared. The speedup is
	// reported for Candidate relative to Baseline.
	Baseline  classifier.Strategy
	Candidate classifier.Strategy

	// DriverOptions are applied to every pass.
	DriverOptions []scrape.Option

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Runs <= 0 {
		o.Runs = DefaultRuns
	}
	if o.Baseline == "" {
		o.Baseline = classifier.StrategySequential
	}
	if o.Candidate == "" {
		o.Candidate = classifier.StrategyCombined
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// StrategyTiming holds the timings of one strategy.
type StrategyTiming struct {
	Strategy  classifier.Strategy
	Durations []time.Duration
	Mean      time.Duration
	Median    time.Duration
	P90       time.Duration
	Min       time.Duration
	Max       time.Duration

	// Snapshot is the final state of the last pass.
	Snapshot *stats.Snapshot
}

// Result is the outcome of a benchmark.
type Result struct {
	Baseline  StrategyTiming
	Candidate StrategyTiming

	// Agree is true when every pass of both strategies produced the same
	// snapshot.
	Agree bool

	// Speedup is the mean time saved per pass by the candidate.
	Speedup time.Duration

	// PercentChange is the speedup as a percentage of the baseline mean.
	PercentChange float64
}

// Summary renders the speedup line, e.g. "0.120 (12.50 %) second average speedup".
func (r *Result) Summary() string {
	return fmt.Sprintf("%.3f (%.2f %%) second average speedup", r.Speedup.Seconds(), r.PercentChange)
}

// Run times opts.Runs passes of each strategy over the input opened by
// open. Passes alternate between the strategies so drift in machine load
// affects both equally.
func Run(ctx context.Context, set *pattern.Set, open SourceFactory, opts Options) (*Result, error) {
	opts.defaults()

	res := &Result{
		Baseline:  StrategyTiming{Strategy: opts.Baseline},
		Candidate: StrategyTiming{Strategy: opts.Candidate},
		Agree:     true,
	}

	var reference *stats.Snapshot
	for i := 0; i < opts.Runs; i++ {
		for _, timing := range []*StrategyTiming{&res.Baseline, &res.Candidate} {
			snap, d, err := pass(ctx, timing.Strategy, set, open, opts.DriverOptions)
			if err != nil {
				return nil, fmt.Errorf("run %d (%s): %w", i+1, timing.Strategy, err)
			}
			timing.Durations = append(timing.Durations, d)
			timing.Snapshot = snap

			if reference == nil {
				reference = snap
			} else if !reference.Equal(snap) {
				res.Agree = false
			}

			opts.Logger.Debug("bench pass", "run", i+1, "strategy", timing.Strategy, "duration", d)
		}
	}

	res.Baseline.summarize()
	res.Candidate.summarize()

	res.Speedup = res.Baseline.Mean - res.Candidate.Mean
	if res.Baseline.Mean > 0 {
		res.PercentChange = -float64(res.Candidate.Mean-res.Baseline.Mean) / float64(res.Baseline.Mean) * 100
	}

	return res, nil
}

func pass(ctx context.Context, strategy classifier.Strategy, set *pattern.Set, open SourceFactory, opts []scrape.Option) (*stats.Snapshot, time.Duration, error) {
	source, err := open()
	if err != nil {
		return nil, 0, err
	}
	defer source.Close()

	result, err := scrape.Scrape(ctx, strategy, set, source, opts...)
	if err != nil {
		return nil, 0, err
	}
	if result.Interrupted {
		return nil, 0, ctx.Err()
	}
	return result.Snapshot, result.Duration, nil
}

func (t *StrategyTiming) summarize() {
	if len(t.Durations) == 0 {
		return
	}

	td := tdigest.NewWithCompression(100)
	var total time.Duration
	t.Min, t.Max = t.Durations[0], t.Durations[0]
	for _, d := range t.Durations {
		total += d
		t.Min = min(t.Min, d)
		t.Max = max(t.Max, d)
		td.Add(float64(d), 1)
	}

	t.Mean = total / time.Duration(len(t.Durations))
	t.Median = time.Duration(td.Quantile(0.5))
	t.P90 = time.Duration(td.Quantile(0.9))
}
