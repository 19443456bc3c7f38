// Package output provides formatting and output generation for scrape results.
package output

import (
	"time"

	"github.com/ccollicutt/scrape/pkg/pattern"
	"github.com/ccollicutt/scrape/pkg/scrape"
	"github.com/ccollicutt/scrape/pkg/stats"
)

// Report is the complete scrape output.
type Report struct {
	// Summary provides line counts for the whole stream.
	Summary Summary `json:"summary"`

	// Categories holds one entry per tracked category, in category order.
	Categories []CategoryReport `json:"categories"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate line counts.
type Summary struct {
	TotalLines   uint64 `json:"total_lines"`
	MatchedLines uint64 `json:"matched_lines"`

	// SkippedLines had a field that failed to parse under the skip policy.
	SkippedLines uint64 `json:"skipped_lines"`

	// InvalidLines were dropped before counting because they were not UTF-8.
	InvalidLines uint64 `json:"invalid_lines"`
}

// CategoryReport is the reduced, printable state of one category.
type CategoryReport struct {
	Name       string                `json:"name"`
	Label      string                `json:"label"`
	Aggregate  pattern.AggregateKind `json:"aggregate"`
	Matches    uint64                `json:"matches"`
	TotalLines uint64                `json:"total_lines"`
	Percentage float64               `json:"percentage"`

	// Numeric categories. Min and Max are omitted until the first match.
	RangeLabel string           `json:"range_label,omitempty"`
	SumLabel   string           `json:"sum_label,omitempty"`
	Min        *uint64          `json:"min,omitempty"`
	Max        *uint64          `json:"max,omitempty"`
	Sum        *uint64          `json:"sum,omitempty"`
	Quantiles  []stats.Quantile `json:"quantiles,omitempty"`

	// Histogram categories. Top holds at most top_k entries.
	Top          []stats.Entry `json:"top,omitempty"`
	DistinctKeys int           `json:"distinct_keys,omitempty"`
}

// Metadata provides context about the run.
type Metadata struct {
	ConfigFile  string        `json:"config_file,omitempty"`
	Sources     []string      `json:"sources"`
	Strategy    string        `json:"strategy"`
	TopK        int           `json:"top_k"`
	ScrapedAt   time.Time     `json:"scraped_at"`
	Duration    time.Duration `json:"duration_ns"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

// NewReport reduces a scrape result into a Report, keeping the topK most
// frequent keys of every histogram category.
func NewReport(result *scrape.Result, configFile string, topK int) *Report {
	snap := result.Snapshot

	report := &Report{
		Summary: Summary{
			TotalLines:   snap.TotalLines,
			MatchedLines: snap.MatchedLines,
			SkippedLines: snap.SkippedLines,
			InvalidLines: result.InvalidLines,
		},
		Categories: make([]CategoryReport, 0, len(snap.Categories)),
		Metadata: Metadata{
			ConfigFile:  configFile,
			Sources:     result.Sources,
			Strategy:    string(result.Strategy),
			TopK:        topK,
			ScrapedAt:   time.Now(),
			Duration:    result.Duration,
			Interrupted: result.Interrupted,
		},
	}

	for _, c := range snap.Categories {
		cr := CategoryReport{
			Name:       c.Name,
			Label:      c.Label,
			Aggregate:  c.Aggregate,
			Matches:    c.Matches,
			TotalLines: c.TotalLines,
			Percentage: c.Percentage(),
			RangeLabel: c.RangeLabel,
			SumLabel:   c.SumLabel,
			Min:        c.Min,
			Max:        c.Max,
			Sum:        c.Sum,
			Quantiles:  c.Quantiles,
		}
		if c.Aggregate == pattern.AggregateHistogram {
			cr.Top = c.Top(topK)
			cr.DistinctKeys = len(c.Frequencies)
		}
		report.Categories = append(report.Categories, cr)
	}

	return report
}

// HasMatches returns true if any line matched a category.
func (r *Report) HasMatches() bool {
	return r.Summary.MatchedLines > 0
}
