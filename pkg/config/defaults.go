package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/pattern"
	"github.com/ccollicutt/scrape/pkg/scrape"
	"github.com/ccollicutt/scrape/pkg/stats"
)

// Default values for configuration.
const (
	DefaultStrategy       = classifier.StrategyCombined
	DefaultTopK           = stats.DefaultTopK
	DefaultOnFieldError   = scrape.FieldErrorAbort
	DefaultWebhookTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvStrategy = "SCRAPE_STRATEGY"
	EnvTopK     = "SCRAPE_TOP_K"
)

// DefaultConfig returns a configuration with sensible defaults.
// Categories is left empty, which selects the built-in categories.
func DefaultConfig() *Config {
	return &Config{
		Strategy:     string(DefaultStrategy),
		TopK:         DefaultTopK,
		OnFieldError: string(DefaultOnFieldError),
	}
}

// CategoriesFromPatterns converts pattern declarations to configuration form.
func CategoriesFromPatterns(patterns []pattern.EventPattern) []CategoryConfig {
	out := make([]CategoryConfig, 0, len(patterns))
	for _, p := range patterns {
		cc := CategoryConfig{
			Name:      p.Name,
			Label:     p.Label,
			Type:      string(p.Aggregate),
			Pattern:   p.Expr,
			Quantiles: append([]float64(nil), p.Quantiles...),
		}
		for _, f := range p.Fields {
			cc.Fields = append(cc.Fields, FieldConfig{
				Name:  f.Name,
				Label: f.Label,
				Group: f.Group,
				Kind:  f.Kind.String(),
				Role:  string(f.Role),
			})
		}
		out = append(out, cc)
	}
	return out
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() error {
	if s := os.Getenv(EnvStrategy); s != "" {
		c.Strategy = s
	}

	if s := os.Getenv(EnvTopK); s != "" {
		k, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTopK, err)
		}
		c.TopK = k
	}

	return nil
}
