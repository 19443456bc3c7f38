// Package config provides configuration loading and validation for scrape.
package config

import (
	"time"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/pattern"
	"github.com/ccollicutt/scrape/pkg/scrape"
)

// Config is the root configuration structure loaded from YAML or TOML.
type Config struct {
	// Strategy is the matching strategy: combined or sequential.
	Strategy string `yaml:"strategy" toml:"strategy"`

	// Track lists the categories to report. Empty means all of them.
	Track []string `yaml:"track,omitempty" toml:"track,omitempty"`

	// TopK is the number of histogram entries reported per category.
	TopK int `yaml:"top_k" toml:"top_k"`

	// OnFieldError is abort or skip.
	OnFieldError string `yaml:"on_field_error" toml:"on_field_error"`

	// SkipInvalidUTF8 drops undecodable lines instead of failing.
	SkipInvalidUTF8 bool `yaml:"skip_invalid_utf8" toml:"skip_invalid_utf8"`

	// Categories replaces the built-in categories when non-empty.
	Categories []CategoryConfig `yaml:"categories,omitempty" toml:"categories,omitempty"`

	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" toml:"webhooks,omitempty"`

	// Populated during validation.
	strategy    classifier.Strategy
	policy      scrape.FieldErrorPolicy
	allPatterns *pattern.Set
	patterns    *pattern.Set
}

// ClassifierStrategy returns the validated matching strategy.
func (c *Config) ClassifierStrategy() classifier.Strategy {
	return c.strategy
}

// FieldErrorPolicy returns the validated field error policy.
func (c *Config) FieldErrorPolicy() scrape.FieldErrorPolicy {
	return c.policy
}

// AllPatterns returns every configured category, compiled.
func (c *Config) AllPatterns() *pattern.Set {
	return c.allPatterns
}

// PatternSet returns the compiled categories selected by Track.
func (c *Config) PatternSet() *pattern.Set {
	return c.patterns
}

// CategoryConfig declares one event category.
type CategoryConfig struct {
	Name  string `yaml:"name" toml:"name"`
	Label string `yaml:"label,omitempty" toml:"label,omitempty"`

	// Type is the aggregate: numeric or histogram.
	Type string `yaml:"type" toml:"type"`

	// Pattern is the regular expression matched against each line.
	Pattern string `yaml:"pattern" toml:"pattern"`

	Fields []FieldConfig `yaml:"fields" toml:"fields"`

	// Quantiles of the sum field to estimate, e.g. [0.5, 0.99].
	Quantiles []float64 `yaml:"quantiles,omitempty" toml:"quantiles,omitempty"`
}

// FieldConfig maps a capture group to a typed field.
type FieldConfig struct {
	Name  string `yaml:"name" toml:"name"`
	Label string `yaml:"label,omitempty" toml:"label,omitempty"`
	Group int    `yaml:"group" toml:"group"` // capture group index (1-based)
	Kind  string `yaml:"kind" toml:"kind"`   // integer or text
	Role  string `yaml:"role" toml:"role"`   // range, sum or key
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnMatch fires only when at least one line matched (default).
	WebhookTriggerOnMatch WebhookTrigger = "on_match"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty" toml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url" toml:"url"`

	// Token is an optional bearer token. ${VAR} and $VAR are expanded by Load.
	Token string `yaml:"token,omitempty" toml:"token,omitempty"`

	// Trigger defaults to "on_match".
	Trigger WebhookTrigger `yaml:"trigger,omitempty" toml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}
