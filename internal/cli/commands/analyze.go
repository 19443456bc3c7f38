package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/scrape/pkg/config"
	"github.com/ccollicutt/scrape/pkg/output"
	"github.com/ccollicutt/scrape/pkg/scrape"
	"github.com/ccollicutt/scrape/pkg/store"
	"github.com/ccollicutt/scrape/pkg/webhook"
)

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	ScanOptions

	Output  string
	Verbose bool
	Quiet   bool
	Record  string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <log-file>...",
		Short: "Classify and aggregate Kafka log events",
		Long: `Read the given log files once, back to back, and report per event category:

  - numeric categories (append): match count, min/max offset, total bytes written
  - histogram categories (named): the most frequent event names

Files ending in .gz or .zst are decompressed. Use - to read stdin.
Press Ctrl-C to stop early and print the report for the lines read so far.

Exit codes:
  0   - Report written
  2   - Configuration or runtime error
  130 - Interrupted, partial report written`,
		Example: `  scrape analyze server.log
  scrape analyze -o json 'logs/server.log*'
  scrape analyze --track named --top-k 5 server.log
  zcat server.log.gz | scrape analyze -q -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	addScanFlags(cmd, &opts.ScanOptions)

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|prometheus)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Add quantiles, hidden event counts and run details")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only")
	cmd.Flags().StringVar(&opts.Record, "record", "", "Append the run to this SQLite history database")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(config.WebhookTriggerOnMatch), "When to fire webhook (on_match|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	ctx := commandContext(cmd)

	logger, err := commandLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}

	hooks, err := collectWebhooks(cfg, opts)
	if err != nil {
		return err
	}

	files, err := expandInputs(args)
	if err != nil {
		return err
	}

	source := newSource(cmd, cfg, files)
	defer source.Close()

	result, err := scrape.Scrape(ctx, cfg.ClassifierStrategy(), cfg.PatternSet(), source, driverOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	report := output.NewReport(result, opts.ConfigPath, cfg.TopK)

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// The run is over; a cancelled context must not stop the follow-up I/O.
	after := context.WithoutCancel(ctx)

	if opts.Record != "" {
		if err := recordRun(after, opts.Record, store.KindAnalyze, report, logger); err != nil {
			return err
		}
	}

	// Webhook failures are logged but don't fail the analysis.
	webhook.NewClient(logger).Dispatch(after, report, hooks)

	if result.Interrupted {
		logger.Warn("interrupted, report covers a partial pass", "lines", result.Snapshot.TotalLines)
		ExitCode = ExitInterrupted
	}

	return nil
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) ([]config.WebhookConfig, error) {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		switch trigger {
		case "":
			trigger = config.WebhookTriggerOnMatch
		case config.WebhookTriggerOnMatch, config.WebhookTriggerAlways, config.WebhookTriggerNever:
		default:
			return nil, fmt.Errorf("invalid webhook trigger %q (must be on_match, always or never)", opts.WebhookTrigger)
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks, nil
}
