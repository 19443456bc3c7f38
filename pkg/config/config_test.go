package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ccollicutt/scrape/pkg/classifier"
	"github.com/ccollicutt/scrape/pkg/pattern"
	"github.com/ccollicutt/scrape/pkg/scrape"
)

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ClassifierStrategy() != classifier.StrategyCombined {
		t.Errorf("ClassifierStrategy() = %q, want combined", cfg.ClassifierStrategy())
	}
	if cfg.FieldErrorPolicy() != scrape.FieldErrorAbort {
		t.Errorf("FieldErrorPolicy() = %q, want abort", cfg.FieldErrorPolicy())
	}
	if cfg.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want %d", cfg.TopK, DefaultTopK)
	}
	want := []string{pattern.CategoryAppend, pattern.CategoryNamed}
	if got := cfg.PatternSet().Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("PatternSet().Names() = %v, want %v", got, want)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	content := `
strategy: sequential
track: [named]
top_k: 3
on_field_error: skip
skip_invalid_utf8: true
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ClassifierStrategy() != classifier.StrategySequential {
		t.Errorf("ClassifierStrategy() = %q, want sequential", cfg.ClassifierStrategy())
	}
	if cfg.TopK != 3 || !cfg.SkipInvalidUTF8 {
		t.Errorf("TopK/SkipInvalidUTF8 = %d/%v, want 3/true", cfg.TopK, cfg.SkipInvalidUTF8)
	}
	if cfg.FieldErrorPolicy() != scrape.FieldErrorSkip {
		t.Errorf("FieldErrorPolicy() = %q, want skip", cfg.FieldErrorPolicy())
	}
	if got := cfg.PatternSet().Names(); !reflect.DeepEqual(got, []string{"named"}) {
		t.Errorf("PatternSet().Names() = %v, want [named]", got)
	}
	if cfg.AllPatterns().Len() != 2 {
		t.Errorf("AllPatterns().Len() = %d, want 2", cfg.AllPatterns().Len())
	}
}

func TestLoad_CustomCategoriesYAML(t *testing.T) {
	content := `
categories:
  - name: fetch
    label: fetch requests
    type: numeric
    pattern: 'Fetch of (\d+) bytes took (\d+) ms'
    quantiles: [0.5, 0.99]
    fields:
      - {name: bytes, group: 1, kind: integer, role: sum}
      - {name: latency, label: latency ms, group: 2, kind: integer, role: range}
  - name: level
    type: histogram
    pattern: '^\[[^\]]*\] (\w+)'
    fields:
      - {name: level, group: 1, kind: text, role: key}
`
	path := writeTempFile(t, "config.yml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	set := cfg.PatternSet()
	if set.Len() != 2 {
		t.Fatalf("PatternSet().Len() = %d, want 2", set.Len())
	}
	fetch := set.At(0)
	if fetch.DisplayLabel() != "fetch requests" || fetch.Aggregate != pattern.AggregateNumeric {
		t.Errorf("fetch = %+v", fetch.EventPattern)
	}
	if fetch.Fields[1].DisplayLabel() != "latency ms" {
		t.Errorf("latency label = %q, want latency ms", fetch.Fields[1].DisplayLabel())
	}
	if !reflect.DeepEqual(fetch.Quantiles, []float64{0.5, 0.99}) {
		t.Errorf("Quantiles = %v", fetch.Quantiles)
	}
}

func TestLoad_TOML(t *testing.T) {
	content := `
strategy = "standard"
top_k = 5

[[categories]]
name = "named"
type = "histogram"
pattern = 'event: (\S+)'

  [[categories.fields]]
  name = "event"
  group = 1
  kind = "text"
  role = "key"

[[webhooks]]
url = "https://example.com/hook"
trigger = "always"
timeout = "3s"
`
	path := writeTempFile(t, "config.toml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ClassifierStrategy() != classifier.StrategySequential {
		t.Errorf("ClassifierStrategy() = %q, want sequential", cfg.ClassifierStrategy())
	}
	if cfg.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.TopK)
	}
	if cfg.PatternSet().Len() != 1 {
		t.Errorf("PatternSet().Len() = %d, want 1", cfg.PatternSet().Len())
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].Timeout != 3*time.Second || cfg.Webhooks[0].Trigger != WebhookTriggerAlways {
		t.Errorf("Webhooks = %+v", cfg.Webhooks)
	}
}

func TestLoad_TOMLUnknownKey(t *testing.T) {
	path := writeTempFile(t, "config.toml", "stratgy = \"combined\"\n")
	if _, err := Load(context.Background(), path); err == nil {
		t.Error("Load() expected error for unknown TOML key")
	}
}

func TestLoad_YAMLUnknownKey(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"top level", "stratgy: sequential\ntopk: 3\n"},
		{"category", "categories:\n  - name: x\n    type: histogram\n    pattern: 'event: (\\w+)'\n    feilds: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, "config.yaml", tt.content)
			_, err := Load(context.Background(), path)
			if err == nil {
				t.Fatal("Load() expected error for unknown YAML key")
			}
			if !strings.Contains(err.Error(), "not found in type") {
				t.Errorf("Load() error = %v, want unknown field error", err)
			}
		})
	}
}

func TestLoad_EmptyYAML(t *testing.T) {
	path := writeTempFile(t, "empty.yaml", "")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want %d", cfg.TopK, DefaultTopK)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "invalid.yaml", `invalid: yaml: content: [`)
	if _, err := Load(context.Background(), path); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvStrategy, "sequential")
	t.Setenv(EnvTopK, "2")

	path := writeTempFile(t, "config.yaml", "strategy: combined\ntop_k: 7\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ClassifierStrategy() != classifier.StrategySequential || cfg.TopK != 2 {
		t.Errorf("strategy/top_k = %q/%d, want sequential/2", cfg.ClassifierStrategy(), cfg.TopK)
	}
}

func TestLoad_InvalidTopKEnvironment(t *testing.T) {
	t.Setenv(EnvTopK, "lots")
	if _, err := Load(context.Background(), ""); err == nil {
		t.Error("Load() expected error for non-numeric SCRAPE_TOP_K")
	}
}

func TestValidate_Errors(t *testing.T) {
	numeric := func(mod func(*CategoryConfig)) []CategoryConfig {
		cc := CategoryConfig{
			Name:    "append",
			Type:    "numeric",
			Pattern: `offset: (\d+)`,
			Fields:  []FieldConfig{{Name: "offset", Group: 1, Kind: "integer", Role: "range"}},
		}
		mod(&cc)
		return []CategoryConfig{cc}
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantKey string
	}{
		{"bad strategy", &Config{Strategy: "parallel"}, "strategy"},
		{"bad policy", &Config{Strategy: "combined", OnFieldError: "retry"}, "on_field_error"},
		{"negative top_k", &Config{Strategy: "combined", TopK: -1}, "top_k"},
		{"unknown track", &Config{Strategy: "combined", Track: []string{"nope"}}, "track"},
		{"missing name", &Config{Strategy: "combined", Categories: numeric(func(c *CategoryConfig) { c.Name = "" })}, "categories[0]"},
		{"missing pattern", &Config{Strategy: "combined", Categories: numeric(func(c *CategoryConfig) { c.Pattern = "" })}, "categories[0]"},
		{"bad type", &Config{Strategy: "combined", Categories: numeric(func(c *CategoryConfig) { c.Type = "gauge" })}, "categories[0]"},
		{"bad kind", &Config{Strategy: "combined", Categories: numeric(func(c *CategoryConfig) { c.Fields[0].Kind = "float" })}, "categories[0]"},
		{"bad regex", &Config{Strategy: "combined", Categories: numeric(func(c *CategoryConfig) { c.Pattern = "(" })}, "categories"},
		{"group out of range", &Config{Strategy: "combined", Categories: numeric(func(c *CategoryConfig) { c.Fields[0].Group = 2 })}, "categories"},
		{"text field on numeric", &Config{Strategy: "combined", Categories: numeric(func(c *CategoryConfig) { c.Fields[0].Kind = "text" })}, "categories"},
		{"webhook without url", &Config{Strategy: "combined", Webhooks: []WebhookConfig{{Name: "x"}}}, "webhooks[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.HasPrefix(err.Error(), tt.wantKey) {
				t.Errorf("Validate() error = %q, want prefix %q", err, tt.wantKey)
			}
		})
	}
}

func TestValidate_RegexErrorIsPatternError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Categories = []CategoryConfig{{
		Name:    "broken",
		Type:    "histogram",
		Pattern: "([a-",
		Fields:  []FieldConfig{{Name: "k", Group: 1, Kind: "text", Role: "key"}},
	}}

	var pe *pattern.PatternError
	if err := Validate(cfg); !errors.As(err, &pe) {
		t.Errorf("Validate() error = %v, want *pattern.PatternError", err)
	}
}

func TestValidate_Revalidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cfg.Strategy = "sequential"
	cfg.Track = []string{"append"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("second Validate() error = %v", err)
	}
	if cfg.ClassifierStrategy() != classifier.StrategySequential || cfg.PatternSet().Len() != 1 {
		t.Errorf("revalidated config = %q/%d", cfg.ClassifierStrategy(), cfg.PatternSet().Len())
	}
}

func TestValidate_Webhook(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhooks = []WebhookConfig{
		{URL: "https://example.com/a", Token: "secret"},
		{URL: "http://localhost:8080/b", Trigger: WebhookTriggerNever, Timeout: time.Second},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Webhooks[0].Trigger != WebhookTriggerOnMatch {
		t.Errorf("default Trigger = %q, want on_match", cfg.Webhooks[0].Trigger)
	}
	if cfg.Webhooks[0].Timeout != DefaultWebhookTimeout {
		t.Errorf("default Timeout = %v, want %v", cfg.Webhooks[0].Timeout, DefaultWebhookTimeout)
	}
	if cfg.Webhooks[0].Token != "secret" {
		t.Errorf("Token = %q, want unchanged", cfg.Webhooks[0].Token)
	}
	if cfg.Webhooks[1].Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", cfg.Webhooks[1].Timeout)
	}
}

func TestLoad_WebhookTokenExpandedOnce(t *testing.T) {
	t.Setenv("SCRAPE_TEST_TOKEN", "$SCRAPE_TEST_INNER")
	t.Setenv("SCRAPE_TEST_INNER", "wrong")

	path := writeTempFile(t, "config.yaml", "webhooks:\n  - url: https://example.com/hook\n    token: ${SCRAPE_TEST_TOKEN}\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Webhooks[0].Token != "$SCRAPE_TEST_INNER" {
		t.Fatalf("Token = %q, want $SCRAPE_TEST_INNER", cfg.Webhooks[0].Token)
	}

	// A flag override validates the merged config again.
	cfg.TopK = 3
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Token != "$SCRAPE_TEST_INNER" {
		t.Errorf("Token after Validate() = %q, want $SCRAPE_TEST_INNER", cfg.Webhooks[0].Token)
	}
}

func TestValidate_WebhookErrors(t *testing.T) {
	tests := []struct {
		name string
		wh   WebhookConfig
	}{
		{"bad scheme", WebhookConfig{URL: "ftp://example.com"}},
		{"no host", WebhookConfig{URL: "http://"}},
		{"bad trigger", WebhookConfig{URL: "https://example.com", Trigger: "on_issues"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Webhooks = []WebhookConfig{tt.wh}
			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestCategoriesFromPatterns_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Categories = CategoriesFromPatterns(pattern.Defaults())
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	want, err := pattern.Compile(pattern.Defaults()...)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	for i := 0; i < want.Len(); i++ {
		if !reflect.DeepEqual(cfg.PatternSet().At(i).EventPattern, want.At(i).EventPattern) {
			t.Errorf("category %d = %+v, want %+v", i, cfg.PatternSet().At(i).EventPattern, want.At(i).EventPattern)
		}
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("SCRAPE_TEST_VAR", "value")

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"${SCRAPE_TEST_VAR}", "value"},
		{"$SCRAPE_TEST_VAR", "value"},
		{"$SCRAPE_TEST_UNSET", ""},
	}
	for _, tt := range tests {
		if got := expandEnvVar(tt.in); got != tt.want {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
