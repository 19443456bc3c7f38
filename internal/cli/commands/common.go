package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/scrape/internal/logging"
	"github.com/ccollicutt/scrape/pkg/config"
	"github.com/ccollicutt/scrape/pkg/output"
	"github.com/ccollicutt/scrape/pkg/parser"
	"github.com/ccollicutt/scrape/pkg/scrape"
	"github.com/ccollicutt/scrape/pkg/store"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitDisagree    = 1
	ExitError       = 2
	ExitInterrupted = 130
)

// ExitCode is set by commands to indicate the result
var ExitCode = ExitOK

// Persistent flag names registered on the root command.
const (
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
)

// ScanOptions are the flags shared by every command that reads logs. A flag
// overrides the config file only when it was given on the command line.
type ScanOptions struct {
	ConfigPath      string
	Strategy        string
	Track           []string
	TopK            int
	OnFieldError    string
	SkipInvalidUTF8 bool
}

func addScanFlags(cmd *cobra.Command, opts *ScanOptions) {
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file (YAML, or TOML by .toml extension)")
	cmd.Flags().StringVarP(&opts.Strategy, "strategy", "s", string(config.DefaultStrategy), "Matching strategy (combined|sequential)")
	cmd.Flags().StringSliceVarP(&opts.Track, "track", "t", nil, "Track only these categories (can be repeated)")
	cmd.Flags().IntVarP(&opts.TopK, "top-k", "k", config.DefaultTopK, "Histogram entries reported per category")
	cmd.Flags().StringVar(&opts.OnFieldError, "on-field-error", string(config.DefaultOnFieldError), "What to do with a line whose field does not parse (abort|skip)")
	cmd.Flags().BoolVar(&opts.SkipInvalidUTF8, "skip-invalid-utf8", false, "Drop lines that are not valid UTF-8 instead of failing")
}

// loadConfig loads the config file and applies the flags that were set.
func (o *ScanOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(commandContext(cmd), o.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	changed := false
	if flags.Changed("strategy") {
		cfg.Strategy, changed = o.Strategy, true
	}
	if flags.Changed("track") {
		cfg.Track, changed = o.Track, true
	}
	if flags.Changed("top-k") {
		cfg.TopK, changed = o.TopK, true
	}
	if flags.Changed("on-field-error") {
		cfg.OnFieldError, changed = o.OnFieldError, true
	}
	if flags.Changed("skip-invalid-utf8") {
		cfg.SkipInvalidUTF8, changed = o.SkipInvalidUTF8, true
	}

	if changed {
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return cfg, nil
}

// expandInputs resolves the file arguments. "-" reads stdin.
func expandInputs(args []string) ([]string, error) {
	files, err := parser.ExpandGlobs(args)
	if err != nil {
		return nil, fmt.Errorf("expanding inputs: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no log files matched: %v", args)
	}
	return files, nil
}

func newSource(cmd *cobra.Command, cfg *config.Config, files []string) *parser.FileSource {
	return parser.NewFileSource(files,
		parser.WithSkipInvalidUTF8(cfg.SkipInvalidUTF8),
		parser.WithStdin(cmd.InOrStdin()),
	)
}

func driverOptions(cfg *config.Config, logger *slog.Logger) []scrape.Option {
	return []scrape.Option{
		scrape.WithFieldErrorPolicy(cfg.FieldErrorPolicy()),
		scrape.WithLogger(logger),
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// commandLogger builds the diagnostics logger from the persistent flags. A
// command run on its own, without the root, gets the default level.
func commandLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString(FlagLogLevel)
	format, _ := cmd.Flags().GetString(FlagLogFormat)
	logger, err := logging.NewLoggerWithWriter(cmd.ErrOrStderr(), format, level)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	return logger, nil
}

// recordRun appends a run to the history database at path.
func recordRun(ctx context.Context, path, kind string, report *output.Report, logger *slog.Logger) error {
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.RecordRun(ctx, store.FromReport(kind, report))
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	logger.Info("run recorded", "db", path, "id", id)
	return nil
}
