package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/prospect-reports/internal/observability"
	"github.com/jonathan/prospect-reports/internal/types"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Print actionable insights for a saved report",
	Long:  "Loads a completed report from the database and asks the model for a short list of actionable insights.",
	RunE:  runInsights,
}

func init() {
	addConfigFlags(insightsCmd)
	insightsCmd.Flags().String("report-id", "", "Document ID of a saved report (required)")

	if err := insightsCmd.MarkFlagRequired("report-id"); err != nil {
		panic(fmt.Sprintf("failed to mark report-id flag as required: %v", err))
	}

	rootCmd.AddCommand(insightsCmd)
}

func runInsights(cmd *cobra.Command, _ []string) error {
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

	database, err := requireStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	reportID, _ := cmd.Flags().GetString("report-id")
	stored, err := database.GetOutcome(ctx, reportID)
	if err != nil {
		return fmt.Errorf("failed to load report %s: %w", reportID, err)
	}
	if stored.Status != types.JobCompleted || strings.TrimSpace(stored.FormattedReport) == "" {
		return fmt.Errorf("report %s has status %s and no formatted report", reportID, stored.Status)
	}

	writer, closeWriter, err := newWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWriter()

	text, err := writer.Insights(ctx, stored.FormattedReport)
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintReport("Actionable insights: "+stored.CompanyName, text)
	return nil
}
