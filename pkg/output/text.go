package output

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ccollicutt/scrape/pkg/pattern"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	ew := &errWriter{w: w}

	if f.opts.Quiet {
		ew.printf("%d/%d lines match in the file\n", report.Summary.MatchedLines, report.Summary.TotalLines)
	} else {
		for i := range report.Categories {
			if i > 0 {
				ew.printf("\n")
			}
			f.formatCategory(ew, &report.Categories[i])
		}
		if f.opts.Verbose {
			f.formatDetails(ew, report)
		}
	}

	if report.Metadata.Interrupted {
		ew.printf("interrupted: partial results after %d lines\n", report.Summary.TotalLines)
	}

	return ew.err
}

func (f *TextFormatter) formatCategory(ew *errWriter, c *CategoryReport) {
	ew.printf("%d/%d (%.2f%%) %s events\n", c.Matches, c.TotalLines, c.Percentage, c.Label)

	switch c.Aggregate {
	case pattern.AggregateNumeric:
		if c.RangeLabel != "" {
			ew.printf("min %s = %s\n", c.RangeLabel, optional(c.Min))
			ew.printf("max %s = %s\n", c.RangeLabel, optional(c.Max))
		}
		if c.SumLabel != "" {
			ew.printf("total %s = %s\n", c.SumLabel, optional(c.Sum))
		}
		if f.opts.Verbose {
			for _, q := range c.Quantiles {
				ew.printf("p%s %s = %.2f\n", percentile(q.Q), c.SumLabel, q.Value)
			}
		}
	case pattern.AggregateHistogram:
		for _, e := range c.Top {
			ew.printf("event %s happened %d times.\n", e.Key, e.Count)
		}
		if f.opts.Verbose && c.DistinctKeys > len(c.Top) {
			ew.printf("(%d more distinct events not shown)\n", c.DistinctKeys-len(c.Top))
		}
	}
}

func (f *TextFormatter) formatDetails(ew *errWriter, report *Report) {
	ew.printf("---\n")
	ew.printf("Strategy: %s\n", report.Metadata.Strategy)
	ew.printf("Lines: %d total, %d matched, %d skipped, %d invalid\n",
		report.Summary.TotalLines,
		report.Summary.MatchedLines,
		report.Summary.SkippedLines,
		report.Summary.InvalidLines)
	for _, s := range report.Metadata.Sources {
		ew.printf("Source: %s\n", s)
	}
	ew.printf("Duration: %s\n", report.Metadata.Duration.Round(1e6))
}

func optional(v *uint64) string {
	if v == nil {
		return "none"
	}
	return strconv.FormatUint(*v, 10)
}

// percentile renders 0.5 as "50" and 0.999 as "99.9".
func percentile(q float64) string {
	return strconv.FormatFloat(math.Round(q*1e6)/1e4, 'f', -1, 64)
}

// errWriter keeps the first write error so formatting code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
