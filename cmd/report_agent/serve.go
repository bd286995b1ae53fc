package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/prospect-reports/internal/observability"
	"github.com/jonathan/prospect-reports/internal/pipeline"
	"github.com/jonathan/prospect-reports/internal/server"
	"github.com/jonathan/prospect-reports/internal/server/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that accepts company lists, streams batch progress and serves saved reports.`,
	RunE:  runServe,
}

func init() {
	addConfigFlags(serveCmd)
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().IntP("concurrency", "c", 0, "Maximum companies processed at once per batch (0 means no limit)")
	serveCmd.Flags().Bool("fetch-site", false, "Include website text in the report prompt")
	serveCmd.Flags().Bool("use-browser", false, "Use headless browser for SPA sites (requires Chrome)")
	serveCmd.Flags().Int("site-pages", 0, "Read up to this many pages of each company site (implies --fetch-site when above 1)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()

	writer, closeWriter, err := newWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWriter()

	database, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	deps := server.Dependencies{Insights: writer, Logger: logger}
	var store pipeline.Store
	if database != nil {
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			return err
		}
		store = database
		deps.Reports = database
	} else {
		logger.Warn("serve: no database configured, outcomes will not be saved")
	}

	forwarder, closeForwarder, err := newEventForwarder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeForwarder()
	if forwarder != nil {
		deps.Events = forwarder
	}

	deps.Batches = pipeline.NewOrchestrator(writer, writer, store, pipeline.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		PersistTimeout: cfg.PersistTimeout.Std(),
		Logger:         logger,
	})

	limitCfg, err := ratelimit.LoadConfig()
	if err != nil {
		return err
	}
	deps.RateLimiter = ratelimit.NewLimiter(limitCfg)

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
