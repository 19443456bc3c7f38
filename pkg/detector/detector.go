// Package detector samples a log file and reports which event categories its
// lines belong to.
package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/scrape/pkg/config"
	"github.com/ccollicutt/scrape/pkg/parser"
	"github.com/ccollicutt/scrape/pkg/pattern"
)

// DefaultSampleSize is the number of lines read when no size is given.
const DefaultSampleSize = 100

// DetectionResult holds the result of sampling a log file.
type DetectionResult struct {
	Matches      []CategoryMatch // Categories that matched, sorted by confidence descending
	SampledLines int             // Number of lines sampled
	MatchedLines int             // Number of lines that matched at least one category
}

// CategoryMatch is one category seen in the sample.
type CategoryMatch struct {
	Pattern     pattern.EventPattern
	Confidence  float64 // 0.0 to 1.0 (fraction of sampled lines matched)
	MatchCount  int
	FieldErrors int    // Matching lines whose fields did not parse
	SampleLine  string // First matching line
	SampleError string // First field parse error, if any
}

// Detector classifies a head sample of a log file.
type Detector struct {
	set        *pattern.Set
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithPatterns replaces the built-in categories.
func WithPatterns(set *pattern.Set) Option {
	return func(d *Detector) {
		if set != nil {
			d.set = set
		}
	}
}

// New creates a Detector over the built-in categories.
func New(opts ...Option) (*Detector, error) {
	d := &Detector{sampleSize: DefaultSampleSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.set == nil {
		set, err := pattern.Compile(pattern.Defaults()...)
		if err != nil {
			return nil, err
		}
		d.set = set
	}
	return d, nil
}

// SampleSize returns the configured sample size.
func (d *Detector) SampleSize() int {
	return d.sampleSize
}

// DetectFromFile samples the head of path. Compressed inputs and "-" for
// stdin are accepted.
func (d *Detector) DetectFromFile(ctx context.Context, path string, opts ...parser.SourceOption) (*DetectionResult, error) {
	lines, err := d.sample(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines classifies a slice of log lines. Every category is tried on
// every line so overlapping categories are all reported.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{SampledLines: len(lines)}
	if len(lines) == 0 {
		return result
	}

	counts := make([]*CategoryMatch, d.set.Len())

	for _, line := range lines {
		b := []byte(line)
		matched := false

		for i, p := range d.set.Patterns() {
			loc := p.Regexp().FindSubmatchIndex(b)
			if loc == nil {
				continue
			}
			matched = true

			m := counts[i]
			if m == nil {
				m = &CategoryMatch{Pattern: p.EventPattern, SampleLine: line}
				counts[i] = m
			}
			m.MatchCount++

			if _, err := p.Extract(b, loc, 0); err != nil {
				m.FieldErrors++
				if m.SampleError == "" {
					m.SampleError = err.Error()
				}
			}
		}

		if matched {
			result.MatchedLines++
		}
	}

	for _, m := range counts {
		if m == nil {
			continue
		}
		m.Confidence = float64(m.MatchCount) / float64(len(lines))
		result.Matches = append(result.Matches, *m)
	}

	// Confidence descending, then declaration order.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].Confidence > result.Matches[j].Confidence
	})

	return result
}

func (d *Detector) sample(ctx context.Context, path string, opts []parser.SourceOption) ([]string, error) {
	src := parser.NewFileSource([]string{path}, opts...)
	defer src.Close()

	var lines []string
	for len(lines) < d.sampleSize {
		line, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, string(line.Bytes))
	}
	return lines, nil
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *CategoryMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one category matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// Categories returns the names of the matched categories, best first.
func (r *DetectionResult) Categories() []string {
	names := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		names = append(names, m.Pattern.Name)
	}
	return names
}

// StarterConfig builds a configuration that tracks the detected categories.
func (r *DetectionResult) StarterConfig() (*config.Config, error) {
	if !r.HasMatch() {
		return nil, fmt.Errorf("no known event categories detected")
	}

	patterns := make([]pattern.EventPattern, 0, len(r.Matches))
	for _, m := range r.Matches {
		patterns = append(patterns, m.Pattern)
	}

	cfg := config.DefaultConfig()
	cfg.Categories = config.CategoriesFromPatterns(patterns)
	cfg.Track = r.Categories()
	return cfg, nil
}

// WriteStarterConfig writes the starter configuration as YAML, preceded by a
// comment header naming the sampled file.
func (r *DetectionResult) WriteStarterConfig(w io.Writer, logFile string) error {
	cfg, err := r.StarterConfig()
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "# scrape configuration\n# Generated by: scrape detect %s\n\n", logFile); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
