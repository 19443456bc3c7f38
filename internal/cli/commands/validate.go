package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/scrape/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a scrape configuration file without reading any logs.

Checks:
  - YAML or TOML syntax
  - Strategy, top_k and on_field_error values
  - Regex pattern validity and capture group references
  - Field kinds and roles for each category type
  - Tracked category names
  - Webhook URLs and triggers`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(commandContext(cmd), configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	all := cfg.AllPatterns()
	tracked := cfg.PatternSet()

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Strategy:       %s\n", cfg.ClassifierStrategy())
	fmt.Fprintf(w, "  On field error: %s\n", cfg.FieldErrorPolicy())
	fmt.Fprintf(w, "  Top K:          %d\n", cfg.TopK)
	fmt.Fprintf(w, "  Categories:     %d (%d tracked)\n", all.Len(), tracked.Len())
	fmt.Fprintf(w, "  Webhooks:       %d\n", len(cfg.Webhooks))

	fmt.Fprintf(w, "\nCategories:\n")
	for i, p := range all.Patterns() {
		marker := ""
		if _, ok := tracked.Lookup(p.Name); !ok {
			marker = " (not tracked)"
		}
		fields := make([]string, 0, len(p.Fields))
		for _, f := range p.Fields {
			fields = append(fields, fmt.Sprintf("%s:%s", f.Name, f.Role))
		}
		fmt.Fprintf(w, "  %d. [%s] %s%s\n", i+1, p.Aggregate, p.Name, marker)
		fmt.Fprintf(w, "     fields: %s\n", strings.Join(fields, ", "))
	}

	return nil
}
