package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/config"
	"github.com/jonathan/prospect-reports/internal/crawling"
	"github.com/jonathan/prospect-reports/internal/db"
	"github.com/jonathan/prospect-reports/internal/events"
	"github.com/jonathan/prospect-reports/internal/fetch"
	"github.com/jonathan/prospect-reports/internal/llm"
	"github.com/jonathan/prospect-reports/internal/reports"
)

// errInterrupted is the cancellation cause recorded on jobs stopped by a signal.
var errInterrupted = errors.New("interrupted")

// addConfigFlags registers the flags shared by commands that load configuration.
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "Path to config.json file (values can be overridden by env vars and flags)")
	f.String("api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	f.String("db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	f.String("redis-url", "", "Redis URL for progress events (optional, defaults to REDIS_URL env var)")
	f.BoolP("verbose", "v", false, "Print detailed debug information")
}

// loadConfig builds the configuration for cmd: defaults, config file,
// environment, then any flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, nil)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides copies explicitly set flags into cfg. Flags a command
// does not define are ignored.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	changed := func(name string) bool {
		return f.Lookup(name) != nil && f.Changed(name)
	}

	if changed("api-key") {
		cfg.APIKey, _ = f.GetString("api-key")
	}
	if changed("db-url") {
		cfg.DatabaseURL, _ = f.GetString("db-url")
	}
	if changed("redis-url") {
		cfg.RedisURL, _ = f.GetString("redis-url")
	}
	if changed("owner") {
		cfg.OwnerID, _ = f.GetString("owner")
	}
	if changed("concurrency") {
		cfg.MaxConcurrency, _ = f.GetInt("concurrency")
	}
	if changed("fetch-site") {
		cfg.FetchSite, _ = f.GetBool("fetch-site")
	}
	if changed("use-browser") {
		cfg.UseBrowser, _ = f.GetBool("use-browser")
		// the browser is only a fallback for site fetching
		if cfg.UseBrowser {
			cfg.FetchSite = true
		}
	}
	if changed("site-pages") {
		cfg.SitePages, _ = f.GetInt("site-pages")
		if cfg.SitePages > 1 {
			cfg.FetchSite = true
		}
	}
	if changed("port") {
		cfg.Port, _ = f.GetInt("port")
	}
	if changed("verbose") {
		cfg.Verbose, _ = f.GetBool("verbose")
	}
}

// interruptContext returns a context cancelled with errInterrupted on SIGINT
// or SIGTERM.
func interruptContext() (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel(errInterrupted)
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sig)
		cancel(nil)
	}
}

func llmConfig(cfg *config.Config) *llm.Config {
	return llm.DefaultConfig().
		WithModel(llm.TierAdvanced, cfg.ModelAdvanced).
		WithModel(llm.TierStandard, cfg.ModelStandard).
		WithModel(llm.TierLite, cfg.ModelLite)
}

// newWriter builds the report writer. The returned function closes the
// underlying model client.
func newWriter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*reports.Writer, func(), error) {
	if cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	client, err := llm.NewClient(ctx, llmConfig(cfg), cfg.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	opts := reports.Options{
		StageTimeout: cfg.StageTimeout.Std(),
		Logger:       logger,
	}
	if cfg.FetchSite {
		reader := fetch.NewSiteReader(fetch.SiteOptions{
			UseBrowser: cfg.UseBrowser,
			Logger:     logger,
		})
		opts.Site = reader
		if cfg.SitePages > 1 {
			opts.Site = crawling.NewCrawler(reader, crawling.Options{
				MaxPages: cfg.SitePages,
				Logger:   logger,
			})
		}
	}

	writer, err := reports.NewWriter(client, opts)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return writer, func() { _ = client.Close() }, nil
}

// openStore connects to the outcome database. It returns nil when no
// database is configured.
func openStore(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

// requireStore is openStore for commands that cannot work without one.
func requireStore(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}
	return openStore(ctx, cfg)
}

// newEventForwarder returns a forwarder publishing batch events to Redis, or
// nil when no Redis URL is configured.
func newEventForwarder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*events.Forwarder, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	client, err := events.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	fwd := events.NewForwarder(events.NewRedisPublisher(client), cfg.RedisChannelPrefix, logger)
	return fwd, func() { _ = client.Close() }, nil
}
