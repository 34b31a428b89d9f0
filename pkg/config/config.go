package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/umputun/compscout/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration, including the competitor
// document consumed by the pipeline
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"default=http://localhost:8080,description=Base URL for RSS feeds and external links"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:compscout.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=Source fetching configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for event classification"`

	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" jsonschema:"description=Pipeline run configuration"`

	Competitors []CompetitorConfig `yaml:"competitors" json:"competitors" jsonschema:"description=Tracked competitors and their sources"`
}

// FetchConfig holds source fetching settings
type FetchConfig struct {
	Timeout          time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=20s,description=HTTP timeout per source request"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Compscout/1.0,description=User agent for outbound requests"`
	HostDelay        time.Duration `yaml:"host_delay" json:"host_delay" jsonschema:"default=1s,description=Minimum delay between requests to the same host"`
	RequestBudget    int           `yaml:"request_budget" json:"request_budget" jsonschema:"default=100,description=Maximum outbound requests per run"`
	MinContentLength int           `yaml:"min_content_length" json:"min_content_length" jsonschema:"default=100,description=Minimum body length to keep a fetched article"`
	MaxItemsPerFeed  int           `yaml:"max_items_per_feed" json:"max_items_per_feed" jsonschema:"default=20,description=Maximum entries taken from a single feed"`
}

// ClassificationConfig holds classification-specific settings
type ClassificationConfig struct {
	BatchLimit  int  `yaml:"batch_limit" json:"batch_limit" jsonschema:"default=100,description=Maximum articles classified in one run"`
	MaxRetries  int  `yaml:"max_retries" json:"max_retries" jsonschema:"default=3,description=Transport retry attempts per article"`
	RetryFailed bool `yaml:"retry_failed" json:"retry_failed" jsonschema:"default=false,description=Re-attempt articles previously marked classification-failed"`
}

// LLMConfig holds LLM configuration for event classification. Decoding
// temperature is pinned to zero by the classifier and not configurable.
type LLMConfig struct {
	Endpoint       string               `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey         string               `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model          string               `yaml:"model" json:"model" jsonschema:"required,description=Model name (e.g. gpt-4o-mini)"`
	MaxTokens      int                  `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=500,description=Maximum tokens in response"`
	Timeout        time.Duration        `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
	Classification ClassificationConfig `yaml:"classification" json:"classification" jsonschema:"description=Classification-specific settings"`
}

// PipelineConfig holds pipeline run settings
type PipelineConfig struct {
	MaxWorkers     int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,description=Maximum concurrent fetch and classification workers"`
	UpdateInterval time.Duration `yaml:"update_interval" json:"update_interval" jsonschema:"default=0,description=Interval between automatic runs in serve mode, 0 disables scheduling"`
}

// CompetitorConfig describes one tracked competitor
type CompetitorConfig struct {
	Name     string         `yaml:"name" json:"name" jsonschema:"required,description=Competitor name"`
	Slug     string         `yaml:"slug" json:"slug" jsonschema:"description=URL-safe identifier, derived from name when empty"`
	Vertical string         `yaml:"vertical" json:"vertical" jsonschema:"description=Industry vertical tag"`
	Sources  []SourceConfig `yaml:"sources" json:"sources" jsonschema:"description=Fetch endpoints for this competitor"`
}

// SourceConfig describes one fetch endpoint
type SourceConfig struct {
	Type     string `yaml:"type" json:"type" jsonschema:"required,enum=rss,enum=html,description=Source type"`
	URL      string `yaml:"url" json:"url" jsonschema:"required,description=Fetch endpoint URL"`
	Selector string `yaml:"selector" json:"selector" jsonschema:"description=CSS selector locating article blocks, html sources only"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:compscout.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for fetching
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 20 * time.Second
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "Compscout/1.0"
	}
	if cfg.Fetch.HostDelay == 0 {
		cfg.Fetch.HostDelay = time.Second
	}
	if cfg.Fetch.RequestBudget == 0 {
		cfg.Fetch.RequestBudget = 100
	}
	if cfg.Fetch.MinContentLength == 0 {
		cfg.Fetch.MinContentLength = 100
	}
	if cfg.Fetch.MaxItemsPerFeed == 0 {
		cfg.Fetch.MaxItemsPerFeed = 20
	}

	// set defaults for LLM
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.Classification.BatchLimit == 0 {
		cfg.LLM.Classification.BatchLimit = 100
	}
	if cfg.LLM.Classification.MaxRetries == 0 {
		cfg.LLM.Classification.MaxRetries = 3
	}

	// set defaults for pipeline
	if cfg.Pipeline.MaxWorkers == 0 {
		cfg.Pipeline.MaxWorkers = 5
	}

	// derive slugs for competitors that don't set one
	for i := range cfg.Competitors {
		if cfg.Competitors[i].Slug == "" {
			cfg.Competitors[i].Slug = slugify(cfg.Competitors[i].Name)
		}
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate LLM config
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.Classification.BatchLimit < 1 {
		return fmt.Errorf("llm.classification.batch_limit must be at least 1")
	}
	if cfg.LLM.Classification.MaxRetries < 1 {
		return fmt.Errorf("llm.classification.max_retries must be at least 1")
	}

	// validate fetch config
	if cfg.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch.timeout must be at least 1 second")
	}
	if cfg.Fetch.RequestBudget < 1 {
		return fmt.Errorf("fetch.request_budget must be at least 1")
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	// validate competitor document
	if len(cfg.Competitors) == 0 {
		return fmt.Errorf("at least one competitor is required")
	}
	seen := make(map[string]bool)
	for _, comp := range cfg.Competitors {
		if comp.Name == "" {
			return fmt.Errorf("competitor name is required")
		}
		if seen[comp.Name] {
			return fmt.Errorf("duplicate competitor name %q", comp.Name)
		}
		seen[comp.Name] = true
		for _, src := range comp.Sources {
			if src.URL == "" {
				return fmt.Errorf("competitor %q: source url is required", comp.Name)
			}
			switch domain.SourceType(src.Type) {
			case domain.SourceRSS:
			case domain.SourceHTML:
				if src.Selector == "" {
					return fmt.Errorf("competitor %q: html source %s requires a selector", comp.Name, src.URL)
				}
			default:
				return fmt.Errorf("competitor %q: unknown source type %q", comp.Name, src.Type)
			}
		}
	}

	return nil
}

// slugify lowercases the name and replaces separator runs with dashes
func slugify(name string) string {
	out := make([]rune, 0, len(name))
	lastDash := true // swallow leading separators
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			lastDash = false
		default:
			if !lastDash {
				out = append(out, '-')
				lastDash = true
			}
		}
	}
	if n := len(out); n > 0 && out[n-1] == '-' {
		out = out[:n-1]
	}
	return string(out)
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetBaseURL returns the externally visible base URL used in generated feeds
func (c *Config) GetBaseURL() string {
	return c.Server.BaseURL
}

// GetFetchConfig returns source fetching configuration
func (c *Config) GetFetchConfig() FetchConfig {
	return c.Fetch
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}
