package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"notebox/api/internal/search"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Push every note into Meilisearch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(cfg.MeiliURL) == "" {
			return errors.New("MEILI_URL is not set")
		}
		ctx := cmd.Context()
		db, pg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meili.Close()
		if !meili.Healthy() {
			return fmt.Errorf("meilisearch at %s is not reachable", cfg.MeiliURL)
		}

		n, err := search.NewService(meili, search.NewPgFTS(pg)).ReindexAllFromPG(ctx)
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d notes\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
