package stats

import (
	"github.com/ccollicutt/scrape/pkg/pattern"
)

// Snapshot is a read-only copy of a Set taken at the end of a pass.
type Snapshot struct {
	// TotalLines is the number of input lines seen.
	TotalLines uint64 `json:"total_lines"`

	// MatchedLines is the number of lines that matched at least one category.
	MatchedLines uint64 `json:"matched_lines"`

	// SkippedLines is the number of lines whose matches were dropped because a
	// field failed to parse.
	SkippedLines uint64 `json:"skipped_lines"`

	// Categories holds one entry per tracked category, in category order.
	Categories []CategorySnapshot `json:"categories"`
}

// Quantile is an estimated percentile of a category's sum field.
type Quantile struct {
	Q     float64 `json:"q"`
	Value float64 `json:"value"`
}

// CategorySnapshot is the final state of one category.
type CategorySnapshot struct {
	Name       string                `json:"name"`
	Label      string                `json:"label"`
	Aggregate  pattern.AggregateKind `json:"aggregate"`
	Matches    uint64                `json:"matches"`
	TotalLines uint64                `json:"total_lines"`

	// Numeric categories. Min and Max are nil until the first match.
	RangeLabel string     `json:"range_label,omitempty"`
	SumLabel   string     `json:"sum_label,omitempty"`
	Min        *uint64    `json:"min,omitempty"`
	Max        *uint64    `json:"max,omitempty"`
	Sum        *uint64    `json:"sum,omitempty"`
	Quantiles  []Quantile `json:"quantiles,omitempty"`

	// Histogram categories.
	Frequencies map[string]uint64 `json:"frequencies,omitempty"`
}

// Percentage returns Matches as a percentage of TotalLines, or 0 when no lines
// were seen.
func (c CategorySnapshot) Percentage() float64 {
	if c.TotalLines == 0 {
		return 0
	}
	return float64(c.Matches) / float64(c.TotalLines) * 100
}

// Top returns the k most frequent histogram keys. See TopK.
func (c CategorySnapshot) Top(k int) []Entry {
	return TopK(c.Frequencies, k)
}

// Category returns the snapshot of the named category.
func (s *Snapshot) Category(name string) (CategorySnapshot, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategorySnapshot{}, false
}

// Percentage returns MatchedLines as a percentage of TotalLines.
func (s *Snapshot) Percentage() float64 {
	if s.TotalLines == 0 {
		return 0
	}
	return float64(s.MatchedLines) / float64(s.TotalLines) * 100
}

// Equal reports whether two snapshots hold the same counts, aggregates and
// frequencies. Quantile estimates are compared exactly as well, which holds
// when both snapshots were fed the same values in the same order.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.TotalLines != o.TotalLines || s.MatchedLines != o.MatchedLines || s.SkippedLines != o.SkippedLines {
		return false
	}
	if len(s.Categories) != len(o.Categories) {
		return false
	}
	for i := range s.Categories {
		if !s.Categories[i].equal(&o.Categories[i]) {
			return false
		}
	}
	return true
}

func (c *CategorySnapshot) equal(o *CategorySnapshot) bool {
	if c.Name != o.Name || c.Aggregate != o.Aggregate || c.Matches != o.Matches || c.TotalLines != o.TotalLines {
		return false
	}
	if !equalPtr(c.Min, o.Min) || !equalPtr(c.Max, o.Max) || !equalPtr(c.Sum, o.Sum) {
		return false
	}
	if len(c.Quantiles) != len(o.Quantiles) {
		return false
	}
	for i := range c.Quantiles {
		if c.Quantiles[i] != o.Quantiles[i] {
			return false
		}
	}
	if len(c.Frequencies) != len(o.Frequencies) {
		return false
	}
	for k, v := range c.Frequencies {
		if ov, ok := o.Frequencies[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func equalPtr(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
