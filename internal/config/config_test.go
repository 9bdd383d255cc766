package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	// Set environment variables
	os.Setenv("RICE_FACETS_BACKEND_URL", "http://solr:8983/solr/core1")
	os.Setenv("RICE_FACETS_LOG_LEVEL", "debug")
	os.Setenv("RICE_FACETS_BASE_FQ", "lang:en,type:article")
	os.Setenv("RICE_FACETS_NAV_TYPE", "memory")
	defer func() {
		os.Unsetenv("RICE_FACETS_BACKEND_URL")
		os.Unsetenv("RICE_FACETS_LOG_LEVEL")
		os.Unsetenv("RICE_FACETS_BASE_FQ")
		os.Unsetenv("RICE_FACETS_NAV_TYPE")
	}()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Backend.URL != "http://solr:8983/solr/core1" {
		t.Errorf("Backend.URL = %s, want http://solr:8983/solr/core1", cfg.Backend.URL)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}

	if len(cfg.Query.FQ) != 2 || cfg.Query.FQ[1] != "type:article" {
		t.Errorf("Query.FQ = %v, want [lang:en type:article]", cfg.Query.FQ)
	}

	if cfg.Navigation.Type != "memory" {
		t.Errorf("Navigation.Type = %s, want memory", cfg.Navigation.Type)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
backend:
  url: "http://custom:8983/solr"
  handler: browse
  rate_limit: 5
  burst: 2
query:
  fq: ["lang:en"]
  fl: [title, author]
widgets:
  - id: text
    type: text
  - id: color
    type: facet
    field: color
  - id: published
    type: date
    field: date
    start: "NOW-5YEARS"
    end: "NOW"
    gap: "+1YEAR"
watch:
  poll_interval_ms: 100
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Backend.Endpoint(); got != "http://custom:8983/solr/browse" {
		t.Errorf("Endpoint() = %s, want http://custom:8983/solr/browse", got)
	}

	if cfg.Backend.RateLimit != 5 || cfg.Backend.Burst != 2 {
		t.Errorf("RateLimit/Burst = %v/%d, want 5/2", cfg.Backend.RateLimit, cfg.Backend.Burst)
	}

	if len(cfg.Widgets) != 3 {
		t.Fatalf("len(Widgets) = %d, want 3", len(cfg.Widgets))
	}

	if cfg.Widgets[1].Field != "color" {
		t.Errorf("Widgets[1].Field = %s, want color", cfg.Widgets[1].Field)
	}

	if got := cfg.Watch.PollInterval(); got != 100*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 100ms", got)
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}

	// Defaults survive for keys the file leaves out
	if cfg.Cache.Type != "none" {
		t.Errorf("Cache.Type = %s, want none", cfg.Cache.Type)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	if got := cfg.Watch.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 250ms", got)
	}

	if cfg.Query.HighlightField != "text" {
		t.Errorf("HighlightField = %s, want text", cfg.Query.HighlightField)
	}

	if got := cfg.Backend.Timeout(); got != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", got)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			modify: func(c *Config) {},
		},
		{
			name:    "invalid backend",
			modify:  func(c *Config) { c.Backend.Type = "elastic" },
			wantErr: "invalid backend type",
		},
		{
			name:    "http backend without url",
			modify:  func(c *Config) { c.Backend.URL = "" },
			wantErr: "backend url is required",
		},
		{
			name:   "bleve backend without url",
			modify: func(c *Config) { c.Backend.Type = "bleve"; c.Backend.URL = "" },
		},
		{
			name:    "negative rate limit",
			modify:  func(c *Config) { c.Backend.RateLimit = -1 },
			wantErr: "rate_limit must not be negative",
		},
		{
			name:    "negative metrics rate limit",
			modify:  func(c *Config) { c.Metrics.RateLimit = -1 },
			wantErr: "metrics rate_limit must not be negative",
		},
		{
			name:    "malformed base filter",
			modify:  func(c *Config) { c.Query.FQ = []string{"nofield"} },
			wantErr: "invalid base filter",
		},
		{
			name: "duplicate widget",
			modify: func(c *Config) {
				c.Widgets = append(c.Widgets, WidgetConfig{ID: "results", Type: WidgetResults})
			},
			wantErr: "duplicate id",
		},
		{
			name: "facet without field",
			modify: func(c *Config) {
				c.Widgets = append(c.Widgets, WidgetConfig{ID: "color", Type: WidgetFacet})
			},
			wantErr: "field is required",
		},
		{
			name: "date facet without gap",
			modify: func(c *Config) {
				c.Widgets = append(c.Widgets, WidgetConfig{ID: "d", Type: WidgetDate, Field: "date", Start: "a", End: "b"})
			},
			wantErr: "field, start, end and gap are required",
		},
		{
			name: "text widget with other id",
			modify: func(c *Config) {
				c.Widgets[0].ID = "search"
			},
			wantErr: "must use id",
		},
		{
			name: "widget id with colon",
			modify: func(c *Config) {
				c.Widgets = append(c.Widgets, WidgetConfig{ID: "a:b", Type: WidgetSort})
			},
			wantErr: "validation failed for widget id",
		},
		{
			name: "unknown widget type",
			modify: func(c *Config) {
				c.Widgets = append(c.Widgets, WidgetConfig{ID: "x", Type: "map"})
			},
			wantErr: "invalid type",
		},
		{
			name:    "invalid cache type",
			modify:  func(c *Config) { c.Cache.Type = "memcached" },
			wantErr: "invalid cache type",
		},
		{
			name:    "redis cache without url",
			modify:  func(c *Config) { c.Cache.Type = "redis"; c.Cache.RedisURL = "" },
			wantErr: "redis_url is required",
		},
		{
			name:    "poll interval too small",
			modify:  func(c *Config) { c.Watch.PollIntervalMs = 1 },
			wantErr: "poll_interval_ms",
		},
		{
			name:    "kafka bus without brokers",
			modify:  func(c *Config) { c.Bus.Type = "kafka" },
			wantErr: "kafka_brokers is required",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Log.Level = "invalid" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestQueryConfig_Base(t *testing.T) {
	q := QueryConfig{
		Q:  []string{"cats"},
		FQ: []string{"lang:en"},
		FL: []string{"title"},
	}

	base, err := q.Base()
	if err != nil {
		t.Fatalf("Base() error = %v", err)
	}

	if len(base.Q) != 1 || base.Q[0].Value != "cats" {
		t.Errorf("Base().Q = %v, want [cats]", base.Q)
	}

	if len(base.FQ) != 1 || base.FQ[0].Field != "lang" || base.FQ[0].Value != "en" {
		t.Errorf("Base().FQ = %v, want [lang:en]", base.FQ)
	}

	q.FQ = []string{"broken"}
	if _, err := q.Base(); err == nil {
		t.Error("Base() error = nil for malformed filter")
	}
}
