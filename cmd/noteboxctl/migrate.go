package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"notebox/api/internal/store"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, migrationDir); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	Long: `Roll back applied migrations, newest first.

Examples:
  noteboxctl migrate down            Roll back the last migration
  noteboxctl migrate down --steps 0  Roll back everything`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.RollbackMigrations(ctx, db, migrationDir, migrateSteps); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back, 0 for all")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
