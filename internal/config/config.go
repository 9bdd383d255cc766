// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ricesearch/rice-facets/internal/pkg/security"
	"github.com/ricesearch/rice-facets/internal/query"
)

// Widget types understood by the CLI.
const (
	WidgetText    = "text"
	WidgetFacet   = "facet"
	WidgetDate    = "date"
	WidgetSort    = "sort"
	WidgetResults = "results"
)

// Config holds all application configuration.
type Config struct {
	// Search backend
	Backend BackendConfig `yaml:"backend"`

	// In-process bleve backend
	Bleve BleveConfig `yaml:"bleve"`

	// Base query and widgets
	Query   QueryConfig    `yaml:"query"`
	Widgets []WidgetConfig `yaml:"widgets" ignored:"true"`

	// Response cache
	Cache CacheConfig `yaml:"cache"`

	// Navigation state
	Navigation NavigationConfig `yaml:"navigation"`

	// Navigation watcher
	Watch WatchConfig `yaml:"watch"`

	// Lifecycle event bus
	Bus BusConfig `yaml:"bus"`

	// Prometheus metrics
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// BackendConfig holds search backend settings.
type BackendConfig struct {
	Type      string  `envconfig:"RICE_FACETS_BACKEND" yaml:"type"` // http or bleve
	URL       string  `envconfig:"RICE_FACETS_BACKEND_URL" yaml:"url"`
	Handler   string  `envconfig:"RICE_FACETS_BACKEND_HANDLER" yaml:"handler"`
	TimeoutMs int     `envconfig:"RICE_FACETS_BACKEND_TIMEOUT_MS" yaml:"timeout_ms"`
	RateLimit float64 `envconfig:"RICE_FACETS_BACKEND_RATE_LIMIT" yaml:"rate_limit"` // requests/s, 0 = disabled
	Burst     int     `envconfig:"RICE_FACETS_BACKEND_BURST" yaml:"burst"`
}

// BleveConfig holds settings for the in-process bleve backend.
type BleveConfig struct {
	IndexPath string `envconfig:"RICE_FACETS_BLEVE_INDEX" yaml:"index_path"` // empty = in memory
	DocsPath  string `envconfig:"RICE_FACETS_BLEVE_DOCS" yaml:"docs_path"`   // JSON lines loaded at startup
}

// QueryConfig holds the base filters every query starts from.
type QueryConfig struct {
	Q              []string `envconfig:"RICE_FACETS_BASE_Q" yaml:"q"`
	FQ             []string `envconfig:"RICE_FACETS_BASE_FQ" yaml:"fq"` // field:value
	FL             []string `envconfig:"RICE_FACETS_BASE_FL" yaml:"fl"`
	HighlightField string   `envconfig:"RICE_FACETS_HIGHLIGHT_FIELD" yaml:"highlight_field"`
}

// WidgetConfig declares one widget for the CLI.
type WidgetConfig struct {
	ID      string   `yaml:"id"`
	Type    string   `yaml:"type"`
	Field   string   `yaml:"field"`
	Start   string   `yaml:"start"`
	End     string   `yaml:"end"`
	Gap     string   `yaml:"gap"`
	Rows    int      `yaml:"rows"`
	Default []string `yaml:"default"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Type     string `envconfig:"RICE_FACETS_CACHE_TYPE" yaml:"type"` // none, memory or redis
	Size     int    `envconfig:"RICE_FACETS_CACHE_SIZE" yaml:"size"`
	TTL      int    `envconfig:"RICE_FACETS_CACHE_TTL" yaml:"ttl"` // seconds, 0 = no expiry
	RedisURL string `envconfig:"RICE_FACETS_REDIS_URL" yaml:"redis_url"`
}

// NavigationConfig holds navigation state settings.
type NavigationConfig struct {
	Type      string `envconfig:"RICE_FACETS_NAV_TYPE" yaml:"type"` // memory or file
	StateFile string `envconfig:"RICE_FACETS_NAV_STATE_FILE" yaml:"state_file"`
}

// WatchConfig holds navigation watcher settings.
type WatchConfig struct {
	PollIntervalMs int `envconfig:"RICE_FACETS_POLL_INTERVAL_MS" yaml:"poll_interval_ms"`
}

// BusConfig holds lifecycle event bus settings.
type BusConfig struct {
	Type         string `envconfig:"RICE_FACETS_BUS_TYPE" yaml:"type"` // none, memory or kafka
	KafkaBrokers string `envconfig:"RICE_FACETS_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"RICE_FACETS_KAFKA_GROUP" yaml:"kafka_group"`
	// KafkaTopicPrefix is prepended to every lifecycle topic on the broker.
	KafkaTopicPrefix string `envconfig:"RICE_FACETS_KAFKA_TOPIC_PREFIX" yaml:"kafka_topic_prefix"`
	EventLog         string `envconfig:"RICE_FACETS_EVENT_LOG" yaml:"event_log"` // JSON lines, empty = disabled
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `envconfig:"RICE_FACETS_METRICS_ENABLED" yaml:"enabled"`
	Addr    string `envconfig:"RICE_FACETS_METRICS_ADDR" yaml:"addr"`
	// RateLimit caps scrapes per second per client. Zero disables limiting.
	RateLimit float64 `envconfig:"RICE_FACETS_METRICS_RATE_LIMIT" yaml:"rate_limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RICE_FACETS_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RICE_FACETS_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Backend = BackendConfig{
		Type:      "http",
		URL:       "http://localhost:8983/solr",
		Handler:   "select",
		TimeoutMs: 30000,
		Burst:     10,
	}

	cfg.Query = QueryConfig{
		FL:             []string{"title"},
		HighlightField: "text",
	}

	cfg.Widgets = []WidgetConfig{
		{ID: "text", Type: WidgetText},
		{ID: "results", Type: WidgetResults, Rows: 10},
	}

	cfg.Cache = CacheConfig{
		Type:     "none",
		Size:     1000,
		TTL:      60,
		RedisURL: "redis://localhost:6379",
	}

	cfg.Navigation = NavigationConfig{
		Type: "file",
	}

	cfg.Watch = WatchConfig{
		PollIntervalMs: 250,
	}

	cfg.Bus = BusConfig{
		Type: "none",
	}

	cfg.Metrics = MetricsConfig{
		Enabled: false,
		Addr:    ":9464",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Backend validation
	validBackends := map[string]bool{"http": true, "bleve": true}
	if !validBackends[c.Backend.Type] {
		errs = append(errs, fmt.Sprintf("invalid backend type: %s (must be http or bleve)", c.Backend.Type))
	}

	if c.Backend.Type == "http" && c.Backend.URL == "" {
		errs = append(errs, "backend url is required for the http backend")
	}

	if c.Backend.TimeoutMs < 1 {
		errs = append(errs, "backend timeout_ms must be positive")
	}

	if c.Backend.RateLimit < 0 {
		errs = append(errs, "backend rate_limit must not be negative")
	}
	if c.Metrics.RateLimit < 0 {
		errs = append(errs, "metrics rate_limit must not be negative")
	}

	if c.Backend.RateLimit > 0 && c.Backend.Burst < 1 {
		errs = append(errs, "backend burst must be positive when rate limiting")
	}

	// Query validation
	for _, raw := range c.Query.FQ {
		if _, err := query.ParseFilter(raw); err != nil {
			errs = append(errs, fmt.Sprintf("invalid base filter: %q (must be field:value)", raw))
		}
	}

	errs = append(errs, c.validateWidgets()...)

	// Cache validation
	validCacheTypes := map[string]bool{"none": true, "memory": true, "redis": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be none, memory or redis)", c.Cache.Type))
	}

	if c.Cache.Type == "redis" && c.Cache.RedisURL == "" {
		errs = append(errs, "redis_url is required for the redis cache")
	}

	if c.Cache.TTL < 0 {
		errs = append(errs, "cache ttl must not be negative")
	}

	// Navigation validation
	validNavTypes := map[string]bool{"memory": true, "file": true}
	if !validNavTypes[c.Navigation.Type] {
		errs = append(errs, fmt.Sprintf("invalid navigation type: %s (must be memory or file)", c.Navigation.Type))
	}

	if c.Watch.PollIntervalMs < 10 {
		errs = append(errs, "poll_interval_ms must be at least 10")
	}

	// Bus validation
	validBusTypes := map[string]bool{"none": true, "memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be none, memory or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && strings.TrimSpace(c.Bus.KafkaBrokers) == "" {
		errs = append(errs, "kafka_brokers is required for the kafka bus")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func (c *Config) validateWidgets() []string {
	var errs []string
	seen := make(map[string]bool)

	for i, w := range c.Widgets {
		if err := security.ValidateWidgetID(w.ID); err != nil {
			errs = append(errs, fmt.Sprintf("widget %d: %v", i, err))
			continue
		}
		if seen[w.ID] {
			errs = append(errs, fmt.Sprintf("widget %s: duplicate id", w.ID))
		}
		seen[w.ID] = true

		switch w.Type {
		case WidgetText:
			if w.ID != "text" {
				errs = append(errs, fmt.Sprintf("widget %s: the text widget must use id \"text\"", w.ID))
			}
		case WidgetFacet:
			if w.Field == "" {
				errs = append(errs, fmt.Sprintf("widget %s: field is required", w.ID))
			}
		case WidgetDate:
			if w.Field == "" || w.Start == "" || w.End == "" || w.Gap == "" {
				errs = append(errs, fmt.Sprintf("widget %s: field, start, end and gap are required", w.ID))
			}
		case WidgetSort:
		case WidgetResults:
			if w.Rows < 0 {
				errs = append(errs, fmt.Sprintf("widget %s: rows must not be negative", w.ID))
			}
		default:
			errs = append(errs, fmt.Sprintf("widget %s: invalid type %q", w.ID, w.Type))
		}
	}

	return errs
}

// Base returns the base query filters.
func (c *QueryConfig) Base() (query.Base, error) {
	base := query.Base{
		Q:  make([]query.Item, 0, len(c.Q)),
		FQ: make([]query.FilterItem, 0, len(c.FQ)),
		FL: append([]string(nil), c.FL...),
	}
	for _, v := range c.Q {
		base.Q = append(base.Q, query.Item{Value: v})
	}
	for _, raw := range c.FQ {
		f, err := query.ParseFilter(raw)
		if err != nil {
			return query.Base{}, err
		}
		base.FQ = append(base.FQ, f)
	}
	return base, nil
}

// Endpoint returns the backend request URL without a query string.
func (b *BackendConfig) Endpoint() string {
	url := strings.TrimRight(b.URL, "/")
	if b.Handler == "" {
		return url
	}
	return url + "/" + strings.TrimLeft(b.Handler, "/")
}

// Timeout returns the backend timeout.
func (b *BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// PollInterval returns the watcher interval.
func (w *WatchConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
