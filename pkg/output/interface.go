package output

import (
	"context"
	"fmt"
	"io"
)

// Formatter renders scrape reports in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json, prometheus).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose adds run details and quantiles.
	Verbose bool

	// Quiet prints only the matched line count.
	Quiet bool
}

// Formats lists the supported format names.
var Formats = []string{"text", "json", "prometheus"}

// NewFormatter returns the formatter registered under name.
func NewFormatter(name string, opts FormatOptions) (Formatter, error) {
	switch name {
	case "text", "":
		return NewTextFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	case "prometheus", "prom":
		return NewPrometheusFormatter(opts), nil
	default:
		return nil, fmt.Errorf("invalid output format %q (must be text, json, or prometheus)", name)
	}
}
