package output

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/pattern"
	"github.com/ccollicutt/scrape/pkg/scrape"
	"github.com/ccollicutt/scrape/pkg/stats"
)

// buildResult records scenario A (append) and scenario B (named) over one
// 9-line stream.
func buildResult(t *testing.T, quantiles ...float64) *scrape.Result {
	t.Helper()
	patterns := pattern.Defaults()
	patterns[0].Quantiles = quantiles
	ps, err := pattern.Compile(patterns...)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	s := stats.NewSet(ps)
	record := func(category int, fields pattern.Fields) {
		s.RecordLine()
		if category < 0 {
			return
		}
		if err := s.RecordMatch(category, fields); err != nil {
			t.Fatalf("RecordMatch() error = %v", err)
		}
	}
	num := func(off, size uint64) pattern.Fields {
		return pattern.Fields{{Kind: pattern.KindInteger, Int: off}, {Kind: pattern.KindInteger, Int: size}}
	}
	key := func(k string) pattern.Fields {
		return pattern.Fields{{Kind: pattern.KindText, Text: k}}
	}

	record(0, num(10, 100))
	record(0, num(30, 50))
	record(-1, nil)
	record(1, key("a"))
	record(1, key("b"))
	record(1, key("a"))
	record(-1, nil)
	record(-1, nil)
	record(-1, nil)

	return &scrape.Result{
		Snapshot: s.Snapshot(),
		Strategy: classifier.StrategyCombined,
		Sources:  []string{"server.log"},
		Duration: 1500 * time.Millisecond,
	}
}

func emptyResult(t *testing.T) *scrape.Result {
	t.Helper()
	ps, err := pattern.Compile(pattern.Defaults()...)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return &scrape.Result{Snapshot: stats.NewSet(ps).Snapshot(), Strategy: classifier.StrategySequential}
}

func format(t *testing.T, f Formatter, report *Report) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	return buf.String()
}

func TestNewReport(t *testing.T) {
	report := NewReport(buildResult(t), "scrape.yaml", 1)

	if report.Summary.TotalLines != 9 || report.Summary.MatchedLines != 5 {
		t.Errorf("Summary = %+v, want 9 total, 5 matched", report.Summary)
	}
	if report.Metadata.ConfigFile != "scrape.yaml" || report.Metadata.Strategy != "combined" || report.Metadata.TopK != 1 {
		t.Errorf("Metadata = %+v", report.Metadata)
	}
	named := report.Categories[1]
	if len(named.Top) != 1 || named.Top[0] != (stats.Entry{Key: "a", Count: 2}) {
		t.Errorf("Top = %v, want [{a 2}]", named.Top)
	}
	if named.DistinctKeys != 2 {
		t.Errorf("DistinctKeys = %d, want 2", named.DistinctKeys)
	}
	if !report.HasMatches() {
		t.Error("HasMatches() = false, want true")
	}
}

func TestTextFormatter_Format(t *testing.T) {
	report := NewReport(buildResult(t), "", stats.DefaultTopK)

	got := format(t, NewTextFormatter(FormatOptions{}), report)
	want := `2/9 (22.22%) append events
min offset = 10
max offset = 30
total bytes written = 150

3/9 (33.33%) named events
event a happened 2 times.
event b happened 1 times.
`
	if got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}
}

func TestTextFormatter_ScenarioA(t *testing.T) {
	report := &Report{Categories: []CategoryReport{{
		Label:      "append",
		Aggregate:  pattern.AggregateNumeric,
		Matches:    2,
		TotalLines: 5,
		Percentage: 40,
		RangeLabel: "offset",
		SumLabel:   "bytes written",
		Min:        ptr(uint64(10)),
		Max:        ptr(uint64(30)),
		Sum:        ptr(uint64(150)),
	}}}

	got := format(t, NewTextFormatter(FormatOptions{}), report)
	for _, line := range []string{
		"2/5 (40.00%) append events",
		"min offset = 10",
		"max offset = 30",
		"total bytes written = 150",
	} {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("output missing %q:\n%s", line, got)
		}
	}
}

func TestTextFormatter_Empty(t *testing.T) {
	got := format(t, NewTextFormatter(FormatOptions{}), NewReport(emptyResult(t), "", 10))

	for _, line := range []string{
		"0/0 (0.00%) append events",
		"min offset = none",
		"max offset = none",
		"total bytes written = 0",
		"0/0 (0.00%) named events",
	} {
		if !strings.Contains(got, line+"\n") {
			t.Errorf("output missing %q:\n%s", line, got)
		}
	}
	if strings.Contains(got, "happened") {
		t.Errorf("empty histogram printed events:\n%s", got)
	}
}

func TestTextFormatter_Quiet(t *testing.T) {
	got := format(t, NewTextFormatter(FormatOptions{Quiet: true}), NewReport(buildResult(t), "", 10))
	if got != "5/9 lines match in the file\n" {
		t.Errorf("Format() = %q", got)
	}
}

func TestTextFormatter_Verbose(t *testing.T) {
	got := format(t, NewTextFormatter(FormatOptions{Verbose: true}), NewReport(buildResult(t, 0.5, 0.99), "", 1))

	for _, want := range []string{
		"p50 bytes written = ",
		"p99 bytes written = ",
		"(1 more distinct events not shown)",
		"Strategy: combined",
		"Lines: 9 total, 5 matched, 0 skipped, 0 invalid",
		"Source: server.log",
		"Duration: 1.5s",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("verbose output missing %q:\n%s", want, got)
		}
	}
}

func TestTextFormatter_Interrupted(t *testing.T) {
	result := buildResult(t)
	result.Interrupted = true

	got := format(t, NewTextFormatter(FormatOptions{}), NewReport(result, "", 10))
	if !strings.HasSuffix(got, "interrupted: partial results after 9 lines\n") {
		t.Errorf("Format() missing interruption notice:\n%s", got)
	}
}

func TestTextFormatter_WriteError(t *testing.T) {
	err := NewTextFormatter(FormatOptions{}).Format(context.Background(), NewReport(buildResult(t), "", 10), failingWriter{})
	if err == nil {
		t.Error("Format() expected write error")
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	got := format(t, NewJSONFormatter(FormatOptions{}), NewReport(buildResult(t), "", 10))

	var decoded Report
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Categories) != 2 {
		t.Fatalf("Categories = %d, want 2", len(decoded.Categories))
	}
	if *decoded.Categories[0].Sum != 150 || decoded.Categories[1].Top[0].Key != "a" {
		t.Errorf("decoded = %+v", decoded.Categories)
	}
}

func TestJSONFormatter_UnsetMinMaxOmitted(t *testing.T) {
	got := format(t, NewJSONFormatter(FormatOptions{}), NewReport(emptyResult(t), "", 10))
	if strings.Contains(got, `"min"`) || strings.Contains(got, `"max"`) {
		t.Errorf("unset min/max present in JSON:\n%s", got)
	}
}

func TestJSONFormatter_Quiet(t *testing.T) {
	got := format(t, NewJSONFormatter(FormatOptions{Quiet: true}), NewReport(buildResult(t), "", 10))

	var summary QuietSummary
	if err := json.Unmarshal([]byte(got), &summary); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if strings.Contains(got, "categories") {
		t.Errorf("quiet JSON contains categories:\n%s", got)
	}
	if summary.MatchedLines != 5 || summary.TotalLines != 9 {
		t.Errorf("matched/total = %d/%d, want 5/9", summary.MatchedLines, summary.TotalLines)
	}
	if summary.Message != "5/9 lines match in the file" {
		t.Errorf("Message = %q", summary.Message)
	}
}

func TestJSONFormatter_QuietEmpty(t *testing.T) {
	got := format(t, NewJSONFormatter(FormatOptions{Quiet: true}), NewReport(emptyResult(t), "", 10))

	var summary QuietSummary
	if err := json.Unmarshal([]byte(got), &summary); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if summary.Percentage != 0 || summary.Message != "0/0 lines match in the file" {
		t.Errorf("summary = %+v", summary)
	}
}

func TestJSONFormatter_WriteError(t *testing.T) {
	err := NewJSONFormatter(FormatOptions{}).Format(context.Background(), NewReport(buildResult(t), "", 10), failingWriter{})
	if err == nil {
		t.Error("Format() expected write error")
	}
}

func decodeFamilies(t *testing.T, text string) map[string]*dto.MetricFamily {
	t.Helper()
	decoder := expfmt.NewDecoder(strings.NewReader(text), expfmt.NewFormat(expfmt.TypeTextPlain))
	families := make(map[string]*dto.MetricFamily)
	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("decode error: %v\n%s", err, text)
		}
		families[mf.GetName()] = &mf
	}
	return families
}

func gaugeValue(mf *dto.MetricFamily, labels map[string]string) (float64, bool) {
	for _, m := range mf.GetMetric() {
		matched := 0
		for _, lp := range m.GetLabel() {
			if labels[lp.GetName()] == lp.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return m.GetGauge().GetValue(), true
		}
	}
	return 0, false
}

func TestPrometheusFormatter_Format(t *testing.T) {
	got := format(t, NewPrometheusFormatter(FormatOptions{}), NewReport(buildResult(t, 0.5), "", 10))
	families := decodeFamilies(t, got)

	tests := []struct {
		metric string
		labels map[string]string
		want   float64
	}{
		{"scrape_lines", map[string]string{"outcome": "total"}, 9},
		{"scrape_lines", map[string]string{"outcome": "matched"}, 5},
		{"scrape_category_matches", map[string]string{"category": "append"}, 2},
		{"scrape_category_min", map[string]string{"category": "append", "field": "offset"}, 10},
		{"scrape_category_max", map[string]string{"category": "append", "field": "offset"}, 30},
		{"scrape_category_sum", map[string]string{"category": "append", "field": "bytes written"}, 150},
		{"scrape_category_event_count", map[string]string{"category": "named", "event": "a"}, 2},
		{"scrape_duration_seconds", nil, 1.5},
	}

	for _, tt := range tests {
		mf, ok := families[tt.metric]
		if !ok {
			t.Errorf("metric %s missing:\n%s", tt.metric, got)
			continue
		}
		v, ok := gaugeValue(mf, tt.labels)
		if !ok || v != tt.want {
			t.Errorf("%s%v = %v (found %v), want %v", tt.metric, tt.labels, v, ok, tt.want)
		}
	}
	if _, ok := families["scrape_category_quantile"]; !ok {
		t.Error("scrape_category_quantile missing")
	}
}

func TestPrometheusFormatter_EmptyOmitsMinMax(t *testing.T) {
	families := decodeFamilies(t, format(t, NewPrometheusFormatter(FormatOptions{}), NewReport(emptyResult(t), "", 10)))
	if _, ok := families["scrape_category_min"]; ok {
		t.Error("scrape_category_min exported without observations")
	}
}

func TestPrometheusFormatter_Quiet(t *testing.T) {
	families := decodeFamilies(t, format(t, NewPrometheusFormatter(FormatOptions{Quiet: true}), NewReport(buildResult(t), "", 10)))
	if _, ok := families["scrape_category_matches"]; ok {
		t.Error("quiet output exported category metrics")
	}
	if _, ok := families["scrape_lines"]; !ok {
		t.Error("quiet output missing scrape_lines")
	}
}

func TestNewFormatter(t *testing.T) {
	for _, name := range Formats {
		f, err := NewFormatter(name, FormatOptions{})
		if err != nil {
			t.Fatalf("NewFormatter(%q) error = %v", name, err)
		}
		if f.Name() != name {
			t.Errorf("Name() = %q, want %q", f.Name(), name)
		}
	}
	if _, err := NewFormatter("xml", FormatOptions{}); err == nil {
		t.Error("NewFormatter() expected error for unknown format")
	}
}

func TestTable_Render(t *testing.T) {
	table := &Table{
		Headers:    []string{"strategy", "runs", "mean"},
		Rows:       [][]string{{"combined", "3", "0.120s"}, {"sequential", "3", "0.250s"}},
		RightAlign: map[int]bool{1: true},
	}

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "strategy    runs  mean\n" +
		"combined       3  0.120s\n" +
		"sequential     3  0.250s\n"
	if buf.String() != want {
		t.Errorf("Render() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestTable_WideRunes(t *testing.T) {
	table := &Table{Rows: [][]string{{"日本", "x"}, {"ab", "y"}}}
	lines := table.lines(lipgloss.NewStyle())
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "日本  x" || lines[1] != "ab    y" {
		t.Errorf("lines = %q", lines)
	}
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Table{}).Render(&buf); err != nil || buf.Len() != 0 {
		t.Errorf("Render() = %q, %v, want nothing", buf.String(), err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func ptr[T any](v T) *T {
	return &v
}
