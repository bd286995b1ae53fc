package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the report outcome table",
	Long:  "Creates the report_outcomes table and its indexes if they do not exist. Safe to run repeatedly.",
	RunE:  runMigrate,
}

func init() {
	addConfigFlags(migrateCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	database, err := requireStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "report_outcomes table is ready")
	return nil
}
