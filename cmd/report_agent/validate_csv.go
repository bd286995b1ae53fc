package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/prospect-reports/internal/ingestion"
	"github.com/jonathan/prospect-reports/internal/observability"
)

var validateCSVCmd = &cobra.Command{
	Use:   "validate-csv",
	Short: "Check a company CSV file without generating reports",
	Long:  "Parses a company list and prints the accepted records and every skipped row with the reason it was skipped.",
	RunE:  runValidateCSV,
}

var validateCSVInput string

func init() {
	validateCSVCmd.Flags().StringVarP(&validateCSVInput, "input", "i", "", "Path to the company CSV file (required)")

	if err := validateCSVCmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag as required: %v", err))
	}

	rootCmd.AddCommand(validateCSVCmd)
}

func runValidateCSV(cmd *cobra.Command, _ []string) error {
	printer := observability.NewPrinter(cmd.OutOrStdout())

	parsed, err := ingestion.ParseFile(validateCSVInput)
	if parsed != nil {
		printer.PrintRecords(parsed.Records)
		printer.PrintRejected(parsed.Rejected)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d accepted, %d skipped\n", len(parsed.Records), len(parsed.Rejected))
	return nil
}
