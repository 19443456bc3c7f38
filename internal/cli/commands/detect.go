package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/scrape/pkg/config"
	"github.com/ccollicutt/scrape/pkg/detector"
	"github.com/ccollicutt/scrape/pkg/output"
	"github.com/ccollicutt/scrape/pkg/parser"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	ConfigPath  string
	Output      string
	SampleSize  int
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Detect which event categories a log file contains",
		Long: `Sample the head of a log file and report how many lines each event
category matches, with a ready-to-use YAML configuration that tracks the
categories found.

Optionally writes the starter config with --write-config.`,
		Example: `  scrape detect server.log
  scrape detect --sample 1000 server.log.gz
  scrape detect -w scrape.yaml server.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Detect the categories of this config instead of the built-ins")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", detector.DefaultSampleSize, "Number of lines to sample")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := commandContext(cmd)

	if opts.Output != "text" && opts.Output != "json" {
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}

	if logFile != parser.Stdin {
		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			return fmt.Errorf("log file not found: %s", logFile)
		}
	}

	cfg, err := config.Load(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	d, err := detector.New(
		detector.WithSampleSize(opts.SampleSize),
		detector.WithPatterns(cfg.AllPatterns()),
	)
	if err != nil {
		return err
	}

	result, err := d.DetectFromFile(ctx, logFile,
		parser.WithSkipInvalidUTF8(true),
		parser.WithStdin(cmd.InOrStdin()),
	)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(cmd.ErrOrStderr(), result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if opts.Output == "json" {
		return outputDetectJSON(w, result, logFile)
	}
	return outputDetectText(w, result, logFile)
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string) error {
	fmt.Fprintln(w, "=== Event Category Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Lines matched: %d\n", result.MatchedLines)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No known event category detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: declare your own categories in a config file and pass it with --config.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Best match: %s (%.1f%% of sampled lines)\n", best.Pattern.Name, best.Confidence*100)
	fmt.Fprintln(w)

	table := &output.Table{
		Headers:    []string{"category", "type", "matches", "confidence", "field errors"},
		RightAlign: map[int]bool{2: true, 3: true, 4: true},
	}
	for _, m := range result.Matches {
		table.Rows = append(table.Rows, []string{
			m.Pattern.Name,
			string(m.Pattern.Aggregate),
			strconv.Itoa(m.MatchCount),
			fmt.Sprintf("%.1f%%", m.Confidence*100),
			strconv.Itoa(m.FieldErrors),
		})
	}
	if err := table.Render(w); err != nil {
		return err
	}
	fmt.Fprintln(w)

	for _, m := range result.Matches {
		fmt.Fprintf(w, "Sample %s:\n  %s\n", m.Pattern.Name, m.SampleLine)
		if m.SampleError != "" {
			fmt.Fprintf(w, "  WARNING: %s\n", m.SampleError)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Configuration snippet (copy to your config file) ---")
	fmt.Fprintln(w)
	return result.WriteStarterConfig(w, logFile)
}

// JSONMatch represents a category match in JSON output.
type JSONMatch struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Pattern     string  `json:"pattern"`
	Confidence  float64 `json:"confidence"`
	MatchCount  int     `json:"match_count"`
	FieldErrors int     `json:"field_errors"`
	SampleLine  string  `json:"sample_line"`
	SampleError string  `json:"sample_error,omitempty"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File         string      `json:"file"`
	BestMatch    string      `json:"best_match,omitempty"`
	Matches      []JSONMatch `json:"matches"`
	SampledLines int         `json:"sampled_lines"`
	MatchedLines int         `json:"matched_lines"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string) error {
	out := JSONOutput{
		File:         logFile,
		SampledLines: result.SampledLines,
		MatchedLines: result.MatchedLines,
		Matches:      make([]JSONMatch, 0, len(result.Matches)),
	}
	if best := result.BestMatch(); best != nil {
		out.BestMatch = best.Pattern.Name
	}

	for _, m := range result.Matches {
		out.Matches = append(out.Matches, JSONMatch{
			Name:        m.Pattern.Name,
			Type:        string(m.Pattern.Aggregate),
			Pattern:     m.Pattern.Expr,
			Confidence:  m.Confidence,
			MatchCount:  m.MatchCount,
			FieldErrors: m.FieldErrors,
			SampleLine:  m.SampleLine,
			SampleError: m.SampleError,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig writes a config tracking the detected categories.
func writeStarterConfig(status io.Writer, result *detector.DetectionResult, logFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no event category detected")
	}

	// #nosec G304 - path is provided by user via CLI
	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := result.WriteStarterConfig(f, logFile); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(status, "Wrote starter config to: %s\n", configPath)
	return nil
}
