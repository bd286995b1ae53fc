package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/ingestion"
	"github.com/jonathan/prospect-reports/internal/job"
	"github.com/jonathan/prospect-reports/internal/observability"
	"github.com/jonathan/prospect-reports/internal/pipeline"
	"github.com/jonathan/prospect-reports/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Generate reports for every company in a CSV file",
	Long: `Reads a company list (Company_Name,Website_URL,Offer), generates and formats a report for
each company concurrently, and saves every outcome when a database is configured.

A failed company never stops the others. The command only exits non-zero when the batch as a
whole cannot start, for example because the file has no valid rows.`,
	RunE: runBatchCmd,
}

func init() {
	addConfigFlags(runCommand)
	runCommand.Flags().StringP("input", "i", "", "Path to the company CSV file (required)")
	runCommand.Flags().StringP("owner", "o", "", "Owner ID the reports are saved under (defaults to REPORTS_OWNER_ID)")
	runCommand.Flags().IntP("concurrency", "c", 0, "Maximum companies processed at once (0 means no limit)")
	runCommand.Flags().Bool("fetch-site", false, "Include website text in the report prompt")
	runCommand.Flags().Bool("use-browser", false, "Use headless browser for SPA sites (requires Chrome)")
	runCommand.Flags().Int("site-pages", 0, "Read up to this many pages of each company site (implies --fetch-site when above 1)")

	if err := runCommand.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag as required: %v", err))
	}

	rootCmd.AddCommand(runCommand)
}

func runBatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.OwnerID) == "" {
		return fmt.Errorf("--owner flag or REPORTS_OWNER_ID environment variable is required")
	}

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)

	input, _ := cmd.Flags().GetString("input")
	parsed, err := ingestion.ParseFile(input)
	if parsed != nil {
		printer.PrintRejected(parsed.Rejected)
	}
	if err != nil {
		return err
	}
	printer.PrintRecords(parsed.Records)

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := interruptContext()
	defer stop()

	writer, closeWriter, err := newWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeWriter()

	database, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	var store pipeline.Store
	if database != nil {
		defer database.Close()
		store = database
	} else {
		logger.Warn("run: no database configured, outcomes will not be saved")
	}

	forwarder, closeForwarder, err := newEventForwarder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeForwarder()

	orch := pipeline.NewOrchestrator(writer, writer, store, pipeline.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		PersistTimeout: cfg.PersistTimeout.Std(),
		OnProgress:     printProgress(out),
		Logger:         logger,
	})

	batch, err := orch.Start(ctx, cfg.OwnerID, parsed.Records)
	if err != nil {
		return err
	}
	var forwarded <-chan int
	if forwarder != nil {
		// keep publishing the final events after an interrupt
		forwarded = forwarder.Go(context.WithoutCancel(ctx), batch)
	}
	<-batch.Done()
	if forwarded != nil {
		<-forwarded
	}

	snap := batch.Snapshot()
	printer.PrintJobs(snap.Jobs)
	printer.PrintSummary(snap.BatchID, snap.Summary)

	logger.Info("run: finished",
		zap.String("batch_id", snap.BatchID),
		zap.Int("needs_attention", snap.Summary.NeedsAttention()))
	return nil
}

// printProgress writes one line per progress event worth showing.
func printProgress(out io.Writer) pipeline.ProgressCallback {
	return func(ev pipeline.ProgressEvent) {
		if line := progressLine(ev); line != "" {
			_, _ = fmt.Fprintln(out, line)
		}
	}
}

// progressLine renders an event for the terminal. Queued and done events
// produce no line; the record list and summary box cover them.
func progressLine(ev pipeline.ProgressEvent) string {
	if ev.Job == nil {
		return ""
	}
	finished := ev.Summary.Completed + ev.Summary.Failed
	prefix := fmt.Sprintf("[%d/%d] %s", finished, ev.Summary.Total, ev.Job.Record.CompanyName)

	switch ev.Kind {
	case pipeline.EventStatus:
		switch ev.Job.Status {
		case types.JobProcessing:
			return prefix + ": generating report"
		case types.JobCompleted:
			return prefix + ": report ready"
		case types.JobFailed:
			if job.IsCancelled(ev.Job.FailureReason) {
				return prefix + ": " + ev.Job.FailureReason
			}
			return prefix + ": failed: " + ev.Job.FailureReason
		}
	case pipeline.EventPersisted:
		return prefix + ": saved as " + ev.Job.ID
	case pipeline.EventPersistFailed:
		return prefix + ": " + ev.Message
	}
	return ""
}
