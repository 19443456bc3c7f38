package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/config"
	"github.com/ccollicutt/scrape/pkg/detector"
	"github.com/ccollicutt/scrape/pkg/parser"
	"github.com/ccollicutt/scrape/pkg/scrape"
	"github.com/ccollicutt/scrape/pkg/stats"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	ConfigPath string
	SampleSize int
	Verbose    bool
}

// Diagnostic statuses.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [log-file]...",
		Short: "Diagnose configuration and input problems",
		Long: `Diagnose common configuration and input problems.

Checks:
- Config file syntax and category declarations
- Log file existence, readability and UTF-8 encoding
- Field parsing of the categories over a sample of each file
- Agreement of the matching strategies over the same sample
- Webhook configuration

Exits 1 when any check fails.`,
		Example: `  scrape diagnose server.log
  scrape diagnose -c scrape.yaml -v server.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file to check (default: built-in categories)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", detector.DefaultSampleSize, "Lines sampled from each log file")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(cmd *cobra.Command, args []string, opts *DiagnoseOptions) error {
	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()
	results := []DiagnosticResult{}

	if opts.ConfigPath != "" {
		result := checkConfigExists(opts.ConfigPath)
		results = append(results, result)
		if result.Status == StatusError {
			return finishDiagnostics(w, results, opts)
		}
	}

	cfg, result := checkConfigParseable(ctx, opts.ConfigPath)
	results = append(results, result)
	if result.Status == StatusError {
		return finishDiagnostics(w, results, opts)
	}

	results = append(results, checkCategories(cfg)...)

	files, inputResults := checkInputs(args)
	results = append(results, inputResults...)

	for _, f := range files {
		results = append(results, checkSample(ctx, cfg, f, opts)...)
	}

	results = append(results, checkWebhooks(cfg, opts)...)

	return finishDiagnostics(w, results, opts)
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'scrape detect <log-file> --write-config scrape.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = StatusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = StatusError
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'scrape detect <log-file> --write-config scrape.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Failed to load config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		if strings.Contains(err.Error(), "toml") {
			result.Suggests = []string{
				"Check TOML syntax - categories are declared as [[categories]] tables",
			}
		}
		return nil, result
	}

	result.Status = StatusOK
	if path == "" {
		result.Message = "No config file, using built-in categories"
	} else {
		result.Message = "Config file parsed successfully"
	}
	result.Details = []string{
		fmt.Sprintf("Strategy: %s", cfg.ClassifierStrategy()),
		fmt.Sprintf("Tracked categories: %s", strings.Join(cfg.PatternSet().Names(), ", ")),
		fmt.Sprintf("On field error: %s", cfg.FieldErrorPolicy()),
	}
	return cfg, result
}

func checkCategories(cfg *config.Config) []DiagnosticResult {
	results := []DiagnosticResult{}

	for _, p := range cfg.PatternSet().Patterns() {
		result := DiagnosticResult{
			Check:   fmt.Sprintf("Category: %s", p.Name),
			Status:  StatusOK,
			Message: fmt.Sprintf("Type: %s, %d field(s)", p.Aggregate, len(p.Fields)),
			Details: []string{fmt.Sprintf("Pattern: %s", p.Expr)},
		}
		for _, f := range p.Fields {
			result.Details = append(result.Details,
				fmt.Sprintf("Field %s: group %d, %s, %s", f.Name, f.Group, f.Kind, f.Role))
		}
		if !strings.HasPrefix(p.Expr, "^") {
			result.Status = StatusWarning
			result.Message = "Pattern is not anchored"
			result.Suggests = []string{
				"Unanchored patterns may match anywhere in a line and scan slower; start the pattern with ^ if possible",
			}
		}
		results = append(results, result)
	}

	return results
}

// checkInputs returns the readable files among args.
func checkInputs(args []string) ([]string, []DiagnosticResult) {
	if len(args) == 0 {
		return nil, []DiagnosticResult{{
			Check:   "Log Files",
			Status:  StatusWarning,
			Message: "No log files given, input checks skipped",
			Suggests: []string{
				"Pass log files to check: scrape diagnose server.log",
			},
		}}
	}

	files, err := parser.ExpandGlobs(args)
	if err != nil {
		return nil, []DiagnosticResult{{
			Check:   "Log Files",
			Status:  StatusError,
			Message: err.Error(),
		}}
	}

	var readable []string
	results := []DiagnosticResult{}

	for _, f := range files {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Log File: %s", f),
		}

		if f == parser.Stdin {
			result.Status = StatusWarning
			result.Message = "stdin cannot be diagnosed"
			results = append(results, result)
			continue
		}

		info, err := os.Stat(f)
		switch {
		case os.IsNotExist(err):
			result.Status = StatusError
			result.Message = "File does not exist"
			result.Suggests = []string{
				"Check if the log file path is correct",
			}
		case err != nil:
			result.Status = StatusError
			result.Message = fmt.Sprintf("Cannot access file: %v", err)
			result.Suggests = []string{"Check file permissions"}
		case info.IsDir():
			result.Status = StatusError
			result.Message = "Path is a directory, not a file"
			result.Suggests = []string{
				"Use a glob pattern to match files in directory",
				"Example: 'logs/server.log*'",
			}
		case info.Size() == 0:
			result.Status = StatusWarning
			result.Message = "File is empty (0 bytes)"
		default:
			result.Status = StatusOK
			result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
			readable = append(readable, f)
		}
		results = append(results, result)
	}

	if len(readable) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Log Files Summary",
			Status:  StatusError,
			Message: "No accessible log files found",
			Suggests: []string{
				"Ensure at least one log file exists and is readable",
			},
		})
	}

	return readable, results
}

// checkSample reads the head of file and checks encoding, field parsing and
// strategy agreement over it.
func checkSample(ctx context.Context, cfg *config.Config, file string, opts *DiagnoseOptions) []DiagnosticResult {
	read := DiagnosticResult{
		Check: fmt.Sprintf("Sample: %s", file),
	}

	lines, invalid, err := readSample(ctx, file, opts.SampleSize)
	if err != nil {
		read.Status = StatusError
		read.Message = fmt.Sprintf("Cannot read file: %v", err)
		return []DiagnosticResult{read}
	}

	read.Status = StatusOK
	read.Message = fmt.Sprintf("Read %d line(s)", len(lines))
	if invalid > 0 {
		read.Status = StatusWarning
		read.Message = fmt.Sprintf("%d of the first lines are not valid UTF-8", invalid)
		if !cfg.SkipInvalidUTF8 {
			read.Suggests = []string{
				"analyze will fail on these lines; pass --skip-invalid-utf8 or set skip_invalid_utf8: true",
			}
		}
	}

	results := []DiagnosticResult{read}
	if len(lines) == 0 {
		return results
	}

	d, err := detector.New(
		detector.WithSampleSize(len(lines)),
		detector.WithPatterns(cfg.PatternSet()),
	)
	if err != nil {
		read.Status = StatusError
		read.Message = err.Error()
		return []DiagnosticResult{read}
	}
	detected := d.DetectFromLines(lines)

	fields := DiagnosticResult{
		Check:  fmt.Sprintf("Field Parsing: %s", file),
		Status: StatusOK,
	}
	if !detected.HasMatch() {
		fields.Status = StatusWarning
		fields.Message = fmt.Sprintf("No category matches any of %d sample lines", len(lines))
		fields.Details = []string{"First sample line:", truncate(lines[0], 80)}
		fields.Suggests = []string{
			"Use 'scrape detect " + file + "' to see which categories the file contains",
		}
	} else {
		failed := 0
		for _, m := range detected.Matches {
			fields.Details = append(fields.Details,
				fmt.Sprintf("%s: %d match(es), %d field error(s)", m.Pattern.Name, m.MatchCount, m.FieldErrors))
			if m.FieldErrors > 0 {
				failed += m.FieldErrors
				fields.Details = append(fields.Details, truncate(m.SampleError, 120))
			}
		}
		fields.Message = fmt.Sprintf("%d/%d sample lines matched", detected.MatchedLines, len(lines))
		if failed > 0 {
			fields.Message = fmt.Sprintf("%d matching line(s) have unparsable fields", failed)
			if cfg.FieldErrorPolicy() == scrape.FieldErrorSkip {
				fields.Status = StatusWarning
			} else {
				fields.Status = StatusError
				fields.Suggests = []string{
					"analyze will stop at the first such line; pass --on-field-error skip to count and skip them",
				}
			}
		}
	}
	results = append(results, fields)

	return append(results, checkStrategies(ctx, cfg, file, lines))
}

func readSample(ctx context.Context, file string, n int) ([]string, int, error) {
	src := parser.NewFileSource([]string{file}, parser.WithSkipInvalidUTF8(true))
	defer src.Close()

	var lines []string
	for len(lines) < n {
		line, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, string(line.Bytes))
	}
	return lines, src.Skipped(), nil
}

// checkStrategies runs every strategy over the sample and compares the
// resulting statistics.
func checkStrategies(ctx context.Context, cfg *config.Config, file string, lines []string) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Strategy Agreement: %s", file),
	}

	var reference *stats.Snapshot
	for _, strategy := range classifier.Strategies {
		res, err := scrape.Scrape(ctx, strategy, cfg.PatternSet(), &sampleSource{file: file, lines: lines},
			scrape.WithFieldErrorPolicy(scrape.FieldErrorSkip))
		if err != nil {
			result.Status = StatusError
			result.Message = fmt.Sprintf("%s strategy failed: %v", strategy, err)
			return result
		}

		snap := res.Snapshot
		result.Details = append(result.Details,
			fmt.Sprintf("%s: %d/%d lines matched", strategy, snap.MatchedLines, snap.TotalLines))

		if reference == nil {
			reference = snap
		} else if !reference.Equal(snap) {
			result.Status = StatusError
			result.Message = "Strategies produced different statistics"
			result.Suggests = []string{
				"Run 'scrape bench " + file + "' to compare them over the whole file",
				"Set strategy: sequential until the difference is resolved",
			}
			return result
		}
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("%d strategies agree over %d sample lines", len(classifier.Strategies), len(lines))
	return result
}

// sampleSource replays sampled lines.
type sampleSource struct {
	file  string
	lines []string
	pos   int
	line  parser.Line
}

func (s *sampleSource) Next(ctx context.Context) (*parser.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.lines) {
		return nil, io.EOF
	}
	s.pos++
	s.line = parser.Line{Bytes: []byte(s.lines[s.pos-1]), Source: s.file, LineNum: s.pos}
	return &s.line, nil
}

func (s *sampleSource) Close() error {
	return nil
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		// Webhooks are optional, just note they're not configured
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  StatusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check:   fmt.Sprintf("Webhook: %s", name),
			Status:  StatusOK,
			Message: fmt.Sprintf("Trigger: %s", wh.Trigger),
		}

		// Check if token looks like an unexpanded env var
		if strings.HasPrefix(wh.Token, "$") {
			result.Status = StatusWarning
			result.Message = "1 warning(s)"
			result.Details = []string{fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token)}
		} else if opts.Verbose {
			result.Details = []string{
				fmt.Sprintf("URL: %s", wh.URL),
				fmt.Sprintf("Timeout: %s", wh.Timeout),
			}
			if wh.Token != "" {
				result.Details = append(result.Details, "Token: configured")
			}
		}

		results = append(results, result)
	}

	// Optionally test webhook connectivity
	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	// Just do a HEAD request to check if the endpoint is reachable
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

// finishDiagnostics prints the results and sets the exit code.
func finishDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) error {
	if printDiagnostics(w, results, opts) > 0 {
		ExitCode = ExitDisagree
	}
	return nil
}

// printDiagnostics writes the results and returns the number of errors.
func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) int {
	fmt.Fprintln(w, "=== scrape Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case StatusOK:
			icon = "PASS"
			okCount++
		case StatusWarning:
			icon = "WARN"
			warnCount++
		case StatusError:
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != StatusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}

	return errCount
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
