// Package main provides the report_agent CLI: batch report generation from a
// company list, the HTTP API, and report maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "report_agent",
	Short: "Prospect report generator",
	Long: "report_agent reads a list of companies and writes a sales prospect report for each one, " +
		"running the companies concurrently and saving every outcome.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
