package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"notebox/api/internal/config"
	"notebox/api/internal/store"
)

var (
	cfg          config.Config
	databaseURL  string
	migrationDir string
)

var rootCmd = &cobra.Command{
	Use:          "noteboxctl",
	Short:        "Maintenance tool for a Notebox database",
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		if databaseURL == "" {
			databaseURL = cfg.DatabaseURL
		}
		if migrationDir == "" {
			migrationDir = cfg.MigrationsDir
		}
	},
}

func init() {
	cfg = config.Load()
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&migrationDir, "migrations", "", "migrations directory (default $NOTEBOX_MIGRATIONS_DIR)")
}

// openStore connects to Postgres. The caller closes the returned db.
func openStore(ctx context.Context) (*sql.DB, *store.PostgresStore, error) {
	db, err := store.Open(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return db, store.NewPostgresStore(db), nil
}
