package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool             `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	DefaultLimit    int              `env:"RATE_LIMIT_DEFAULT_LIMIT" envDefault:"1000"`
	DefaultWindow   time.Duration    `env:"RATE_LIMIT_DEFAULT_WINDOW" envDefault:"1m"`
	CleanupInterval time.Duration    `env:"RATE_LIMIT_CLEANUP_INTERVAL" envDefault:"5m"`
	Whitelist       []string         `env:"RATE_LIMIT_WHITELIST" envSeparator:","`
	Blacklist       []string         `env:"RATE_LIMIT_BLACKLIST" envSeparator:","`
	EndpointConfigs []EndpointConfig `env:"-"`
}

// LoadConfig loads rate limiting configuration from the process environment.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(nil)
}

// LoadConfigFrom loads configuration from environ, or from the process
// environment when environ is nil.
func LoadConfigFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit config: %w", err)
	}
	cfg.EndpointConfigs = DefaultEndpointConfigs()
	return &cfg, nil
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: every job in a batch makes two model calls
		{Path: "/batches", Method: http.MethodPost, Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/reports/", Method: http.MethodPost, Limit: 30, Window: time.Hour, Burst: 5},

		// Tier 2: reads are handled by the default limit
		// Tier 3: health check is unlimited, see MatchEndpoint
	}
}
