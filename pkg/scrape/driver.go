// Package scrape drives a single pass over a log stream: every line is
// classified and folded into per-category statistics, and one result is
// produced when the stream ends.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/parser"
	"github.com/ccollicutt/scrape/pkg/pattern"
	"github.com/ccollicutt/scrape/pkg/stats"
)

// ErrAlreadyRun is returned by Run on a driver that has already run.
var ErrAlreadyRun = errors.New("scrape: driver already run")

// State is the lifecycle state of a Driver.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FieldErrorPolicy decides what happens when a matching line carries a field
// that does not parse.
type FieldErrorPolicy string

const (
	// FieldErrorAbort stops the pass with a LineError.
	FieldErrorAbort FieldErrorPolicy = "abort"
	// FieldErrorSkip drops every match of the line and keeps going.
	FieldErrorSkip FieldErrorPolicy = "skip"
)

// ParseFieldErrorPolicy converts a configuration name into a policy.
// The empty string selects FieldErrorAbort.
func ParseFieldErrorPolicy(s string) (FieldErrorPolicy, error) {
	switch FieldErrorPolicy(s) {
	case "":
		return FieldErrorAbort, nil
	case FieldErrorAbort, FieldErrorSkip:
		return FieldErrorPolicy(s), nil
	default:
		return "", fmt.Errorf("invalid field error policy %q (must be abort or skip)", s)
	}
}

// Option configures a Driver.
type Option func(*Driver)

// WithFieldErrorPolicy sets how field parse failures are handled.
func WithFieldErrorPolicy(p FieldErrorPolicy) Option {
	return func(d *Driver) {
		d.policy = p
	}
}

// WithLogger sets the logger used for progress and skip warnings.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// Driver runs one pass of a classifier over a line source.
// It is not safe for concurrent use.
type Driver struct {
	cls    classifier.Classifier
	stats  *stats.Set
	policy FieldErrorPolicy
	logger *slog.Logger
	state  State

	matches []classifier.Match
}

// New creates a driver in StateNotStarted. cls must have been built over set.
func New(cls classifier.Classifier, set *pattern.Set, opts ...Option) (*Driver, error) {
	if cls == nil {
		return nil, fmt.Errorf("scrape: nil classifier")
	}
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("scrape: empty pattern set")
	}

	d := &Driver{
		cls:     cls,
		stats:   stats.NewSet(set),
		policy:  FieldErrorAbort,
		logger:  slog.Default(),
		matches: make([]classifier.Match, 0, set.Len()),
	}
	for _, opt := range opts {
		opt(d)
	}

	if _, err := ParseFieldErrorPolicy(string(d.policy)); err != nil {
		return nil, err
	}
	return d, nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// Run reads source until io.EOF, classifying and recording every line in
// order. If ctx is cancelled the pass stops between lines and the partial
// result is returned with Interrupted set and a nil error.
func (d *Driver) Run(ctx context.Context, source parser.LineSource) (*Result, error) {
	if d.state != StateNotStarted {
		return nil, ErrAlreadyRun
	}
	d.state = StateRunning
	defer func() { d.state = StateFinished }()

	start := time.Now()
	result := &Result{Strategy: d.cls.Strategy()}
	seen := make(map[string]bool)

	d.logger.Debug("scrape started", "strategy", result.Strategy, "categories", d.stats.Len())

	for {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		line, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				result.Interrupted = true
				break
			}
			return nil, fmt.Errorf("reading log source: %w", err)
		}

		if !seen[line.Source] {
			seen[line.Source] = true
			result.Sources = append(result.Sources, line.Source)
		}

		if err := d.process(line); err != nil {
			return nil, err
		}
	}

	if s, ok := source.(interface{ Skipped() int }); ok {
		result.InvalidLines = uint64(s.Skipped())
	}
	result.Snapshot = d.stats.Snapshot()
	result.Duration = time.Since(start)

	d.logger.Debug("scrape finished",
		"lines", result.Snapshot.TotalLines,
		"matched", result.Snapshot.MatchedLines,
		"skipped", result.Snapshot.SkippedLines,
		"interrupted", result.Interrupted,
		"duration", result.Duration,
	)

	return result, nil
}

// process handles one line. Nothing is recorded for the line's matches unless
// all of them classify and apply cleanly.
func (d *Driver) process(line *parser.Line) error {
	d.stats.RecordLine()

	var err error
	d.matches, err = d.cls.Classify(line.Bytes, d.matches[:0])
	if err != nil {
		var fpe *pattern.FieldParseError
		if errors.As(err, &fpe) && d.policy == FieldErrorSkip {
			d.stats.RecordSkipped()
			d.logger.Warn("skipping line with unparsable field",
				"source", line.Source, "line", line.LineNum, "error", err)
			return nil
		}
		return &LineError{Source: line.Source, LineNum: line.LineNum, Err: err}
	}

	if err := d.stats.Apply(d.matches); err != nil {
		return &LineError{Source: line.Source, LineNum: line.LineNum, Err: err}
	}
	return nil
}

// Scrape builds the classifier for strategy over set and runs one pass of it
// over source.
func Scrape(ctx context.Context, strategy classifier.Strategy, set *pattern.Set, source parser.LineSource, opts ...Option) (*Result, error) {
	cls, err := classifier.New(strategy, set)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}
	d, err := New(cls, set, opts...)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, source)
}
