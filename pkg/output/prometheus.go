package output

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/ccollicutt/scrape/pkg/pattern"
)

// PrometheusFormatter renders a report in the Prometheus text exposition
// format, suitable for a node_exporter textfile collector.
type PrometheusFormatter struct {
	opts FormatOptions
}

// NewPrometheusFormatter creates a new Prometheus formatter.
func NewPrometheusFormatter(opts FormatOptions) *PrometheusFormatter {
	return &PrometheusFormatter{opts: opts}
}

// Name returns the format name.
func (f *PrometheusFormatter) Name() string {
	return "prometheus"
}

// reportMetrics are the gauges one report is exported through.
type reportMetrics struct {
	lines     *prometheus.GaugeVec
	duration  prometheus.Gauge
	matches   *prometheus.GaugeVec
	min       *prometheus.GaugeVec
	max       *prometheus.GaugeVec
	sum       *prometheus.GaugeVec
	quantiles *prometheus.GaugeVec
	events    *prometheus.GaugeVec
}

func newReportMetrics(reg prometheus.Registerer) *reportMetrics {
	m := &reportMetrics{
		lines: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scrape_lines",
				Help: "Input lines by outcome (total, matched, skipped, invalid)",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_duration_seconds",
				Help: "Wall time of the pass",
			},
		),
		matches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scrape_category_matches",
				Help: "Lines matched per category",
			},
			[]string{"category"},
		),
		min: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scrape_category_min",
				Help: "Smallest observed range field value",
			},
			[]string{"category", "field"},
		),
		max: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scrape_category_max",
				Help: "Largest observed range field value",
			},
			[]string{"category", "field"},
		),
		sum: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scrape_category_sum",
				Help: "Total of the sum field",
			},
			[]string{"category", "field"},
		),
		quantiles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scrape_category_quantile",
				Help: "Estimated quantile of the sum field",
			},
			[]string{"category", "field", "quantile"},
		),
		events: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scrape_category_event_count",
				Help: "Occurrences of the most frequent histogram keys",
			},
			[]string{"category", "event"},
		),
	}

	reg.MustRegister(m.lines, m.duration, m.matches, m.min, m.max, m.sum, m.quantiles, m.events)
	return m
}

func (m *reportMetrics) observe(report *Report) {
	m.lines.WithLabelValues("total").Set(float64(report.Summary.TotalLines))
	m.lines.WithLabelValues("matched").Set(float64(report.Summary.MatchedLines))
	m.lines.WithLabelValues("skipped").Set(float64(report.Summary.SkippedLines))
	m.lines.WithLabelValues("invalid").Set(float64(report.Summary.InvalidLines))
	m.duration.Set(report.Metadata.Duration.Seconds())

	for _, c := range report.Categories {
		m.matches.WithLabelValues(c.Name).Set(float64(c.Matches))

		switch c.Aggregate {
		case pattern.AggregateNumeric:
			if c.Min != nil {
				m.min.WithLabelValues(c.Name, c.RangeLabel).Set(float64(*c.Min))
			}
			if c.Max != nil {
				m.max.WithLabelValues(c.Name, c.RangeLabel).Set(float64(*c.Max))
			}
			if c.Sum != nil {
				m.sum.WithLabelValues(c.Name, c.SumLabel).Set(float64(*c.Sum))
			}
			for _, q := range c.Quantiles {
				m.quantiles.WithLabelValues(c.Name, c.SumLabel, fmt.Sprint(q.Q)).Set(q.Value)
			}
		case pattern.AggregateHistogram:
			for _, e := range c.Top {
				m.events.WithLabelValues(c.Name, e.Key).Set(float64(e.Count))
			}
		}
	}
}

// Format renders the report as Prometheus text. Quiet mode exports only the
// line counters.
func (f *PrometheusFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	reg := prometheus.NewRegistry()
	m := newReportMetrics(reg)

	if f.opts.Quiet {
		quiet := *report
		quiet.Categories = nil
		report = &quiet
	}
	m.observe(report)

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
