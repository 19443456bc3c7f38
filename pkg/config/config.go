package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/pattern"
	"github.com/ccollicutt/scrape/pkg/scrape"
)

// Load reads and validates a configuration file. Files ending in .toml are
// decoded as TOML, anything else as YAML. An empty path yields the defaults.
func Load(_ context.Context, path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		for i := range cfg.Webhooks {
			cfg.Webhooks[i].Token = expandEnvVar(cfg.Webhooks[i].Token)
		}
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown key %q", undecoded[0].String())
		}
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks a configuration for errors and compiles the category
// patterns. It may be called again after fields are changed.
func Validate(cfg *Config) error {
	strategy, err := classifier.ParseStrategy(cfg.Strategy)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	cfg.strategy = strategy

	policy, err := scrape.ParseFieldErrorPolicy(cfg.OnFieldError)
	if err != nil {
		return fmt.Errorf("on_field_error: %w", err)
	}
	cfg.policy = policy

	if cfg.TopK < 0 {
		return fmt.Errorf("top_k: must be >= 0, got %d", cfg.TopK)
	}

	patterns, err := buildPatterns(cfg.Categories)
	if err != nil {
		return err
	}

	all, err := pattern.Compile(patterns...)
	if err != nil {
		return fmt.Errorf("categories: %w", err)
	}
	cfg.allPatterns = all

	selected, err := all.Select(cfg.Track)
	if err != nil {
		return fmt.Errorf("track: %w", err)
	}
	cfg.patterns = selected

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

// buildPatterns converts category configs into pattern declarations.
// No categories selects the built-ins.
func buildPatterns(categories []CategoryConfig) ([]pattern.EventPattern, error) {
	if len(categories) == 0 {
		return pattern.Defaults(), nil
	}

	out := make([]pattern.EventPattern, 0, len(categories))
	for i, cc := range categories {
		p, err := cc.toPattern()
		if err != nil {
			return nil, fmt.Errorf("categories[%d] (%s): %w", i, cc.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (cc CategoryConfig) toPattern() (pattern.EventPattern, error) {
	if cc.Name == "" {
		return pattern.EventPattern{}, errors.New("name is required")
	}
	if cc.Pattern == "" {
		return pattern.EventPattern{}, errors.New("pattern is required")
	}

	var agg pattern.AggregateKind
	switch pattern.AggregateKind(cc.Type) {
	case pattern.AggregateNumeric, pattern.AggregateHistogram:
		agg = pattern.AggregateKind(cc.Type)
	default:
		return pattern.EventPattern{}, fmt.Errorf("invalid type %q (must be numeric or histogram)", cc.Type)
	}

	p := pattern.EventPattern{
		Name:      cc.Name,
		Label:     cc.Label,
		Expr:      cc.Pattern,
		Aggregate: agg,
		Quantiles: cc.Quantiles,
	}

	for j, fc := range cc.Fields {
		kind, err := pattern.ParseFieldKind(fc.Kind)
		if err != nil {
			return pattern.EventPattern{}, fmt.Errorf("fields[%d]: %w", j, err)
		}
		p.Fields = append(p.Fields, pattern.FieldSpec{
			Name:  fc.Name,
			Label: fc.Label,
			Group: fc.Group,
			Kind:  kind,
			Role:  pattern.FieldRole(fc.Role),
		})
	}

	return p, nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	switch wh.Trigger {
	case "":
		wh.Trigger = WebhookTriggerOnMatch
	case WebhookTriggerOnMatch, WebhookTriggerAlways, WebhookTriggerNever:
	default:
		return fmt.Errorf("invalid trigger %q (must be on_match, always, or never)", wh.Trigger)
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a token given as ${VAR} or $VAR.
func expandEnvVar(s string) string {
	switch {
	case strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}"):
		return os.Getenv(s[2 : len(s)-1])
	case strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${"):
		return os.Getenv(s[1:])
	default:
		return s
	}
}
