// Package config provides configuration loading and validation for the CLI
// and the HTTP server.
//
// Values are layered: built-in defaults, then an optional JSON file, then
// environment variables. Command-line flags are applied last by the caller.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
)

// Default values.
const (
	DefaultMaxConcurrency     = 8
	DefaultStageTimeout       = 2 * time.Minute
	DefaultPersistTimeout     = 30 * time.Second
	DefaultPort               = 8080
	DefaultLogLevel           = "info"
	DefaultRedisChannelPrefix = "reports"
	DefaultSitePages          = 1
	MaxSitePages              = 15
)

// Config represents the configuration that can be loaded from a JSON file
// and overridden from the environment.
type Config struct {
	// Credentials and backing services
	APIKey             string `json:"api_key,omitempty" env:"GEMINI_API_KEY"`
	DatabaseURL        string `json:"database_url,omitempty" env:"DATABASE_URL"`
	RedisURL           string `json:"redis_url,omitempty" env:"REDIS_URL"`
	RedisChannelPrefix string `json:"redis_channel_prefix,omitempty" env:"REDIS_CHANNEL_PREFIX"`

	// Batch execution
	OwnerID        string   `json:"owner_id,omitempty" env:"REPORTS_OWNER_ID"`
	MaxConcurrency int      `json:"max_concurrency" env:"REPORTS_MAX_CONCURRENCY"` // 0 means unbounded
	StageTimeout   Duration `json:"stage_timeout,omitempty" env:"REPORTS_STAGE_TIMEOUT"`
	PersistTimeout Duration `json:"persist_timeout,omitempty" env:"REPORTS_PERSIST_TIMEOUT"`

	// Website context for report generation
	FetchSite  bool `json:"fetch_site,omitempty" env:"REPORTS_FETCH_SITE"`
	UseBrowser bool `json:"use_browser,omitempty" env:"REPORTS_USE_BROWSER"`
	SitePages  int  `json:"site_pages,omitempty" env:"REPORTS_SITE_PAGES"` // 0 or 1 reads only the given page

	// Model overrides per tier; empty keeps the built-in model
	ModelAdvanced string `json:"model_advanced,omitempty" env:"GEMINI_MODEL_ADVANCED"`
	ModelStandard string `json:"model_standard,omitempty" env:"GEMINI_MODEL_STANDARD"`
	ModelLite     string `json:"model_lite,omitempty" env:"GEMINI_MODEL_LITE"`

	// HTTP server
	Port           int      `json:"port,omitempty" env:"PORT"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Logging
	LogLevel string `json:"log_level,omitempty" env:"LOG_LEVEL"`
	Verbose  bool   `json:"verbose,omitempty" env:"VERBOSE"`
}

// Duration is a time.Duration that reads from strings such as "90s" in both
// JSON and environment variables.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RedisChannelPrefix: DefaultRedisChannelPrefix,
		MaxConcurrency:     DefaultMaxConcurrency,
		StageTimeout:       Duration(DefaultStageTimeout),
		PersistTimeout:     Duration(DefaultPersistTimeout),
		SitePages:          DefaultSitePages,
		Port:               DefaultPort,
		LogLevel:           DefaultLogLevel,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{}
	if err := readFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load builds the effective configuration: defaults, then the JSON file at
// path (skipped when empty), then the environment. environ overrides the
// process environment when non-nil.
func Load(path string, environ map[string]string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

// Validate checks that the configuration has valid values.
// Required fields are checked by the command that needs them.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("config error: 'max_concurrency' must be non-negative")
	}
	if c.StageTimeout < 0 {
		return fmt.Errorf("config error: 'stage_timeout' must be non-negative")
	}
	if c.PersistTimeout < 0 {
		return fmt.Errorf("config error: 'persist_timeout' must be non-negative")
	}
	if c.SitePages < 0 || c.SitePages > MaxSitePages {
		return fmt.Errorf("config error: 'site_pages' must be between 0 and %d", MaxSitePages)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config error: unknown 'log_level' %q", c.LogLevel)
	}
	if c.UseBrowser && !c.FetchSite {
		return fmt.Errorf("config error: 'use_browser' requires 'fetch_site'")
	}
	return nil
}
