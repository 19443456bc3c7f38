package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter encodes the whole report as indented JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// QuietSummary is the quiet form of the JSON report: the stream totals and
// the same one-line message the text formatter prints.
type QuietSummary struct {
	MatchedLines uint64  `json:"matched_lines"`
	TotalLines   uint64  `json:"total_lines"`
	Percentage   float64 `json:"percentage"`
	Message      string  `json:"message"`
	Interrupted  bool    `json:"interrupted,omitempty"`
}

func newQuietSummary(report *Report) QuietSummary {
	s := report.Summary
	q := QuietSummary{
		MatchedLines: s.MatchedLines,
		TotalLines:   s.TotalLines,
		Message:      fmt.Sprintf("%d/%d lines match in the file", s.MatchedLines, s.TotalLines),
		Interrupted:  report.Metadata.Interrupted,
	}
	if s.TotalLines > 0 {
		q.Percentage = float64(s.MatchedLines) / float64(s.TotalLines) * 100
	}
	return q
}

// Format writes the report, or its QuietSummary in quiet mode.
func (f *JSONFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	var v any = report
	if f.opts.Quiet {
		v = newQuietSummary(report)
	}
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding json report: %w", err)
	}
	return nil
}
