// Package cli provides the command-line interface for scrape.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/scrape/internal/cli/commands"
	"github.com/ccollicutt/scrape/internal/logging"
)

// Execute runs the root command and returns the exit code.
// SIGINT and SIGTERM cancel the command's context; a running scan stops
// between lines and reports what it has read.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	commands.ExitCode = commands.ExitOK

	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scrape",
		Short: "Classify and aggregate events in Kafka broker logs",
		Long: `scrape reads Kafka broker logs in a single pass and aggregates the events
it recognizes.

Built-in categories:
  - append: "Appended message set" lines; min/max offset and total bytes written
  - named:  lines naming an event; how often each event happened

Categories are configurable in a YAML or TOML file. Two interchangeable
matching strategies are available: combined (one alternation of every
pattern per line) and sequential (each pattern on its own).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString(commands.FlagLogLevel)
			if _, err := logging.ParseLevel(level); err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString(commands.FlagLogFormat)
			if format != logging.FormatText && format != logging.FormatJSON {
				return fmt.Errorf("invalid log format %q (must be text or json)", format)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String(commands.FlagLogLevel, "warn", "Diagnostics level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String(commands.FlagLogFormat, logging.FormatText, "Diagnostics format (text|json)")

	// Add subcommands
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewBenchCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
