package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"notebox/api/internal/notetree"
	"notebox/api/internal/store"
)

var errViolations = errors.New("tree check failed")

var checkMaxDepth int

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Audit the note tree for cycles, dangling parents and depth",
	Long: `Load every note and verify the hierarchy invariants. Exits non-zero
when any violation is found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, pg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		notes, err := pg.ListNotes(ctx)
		if err != nil {
			return fmt.Errorf("list notes: %w", err)
		}
		maxDepth := checkMaxDepth
		if maxDepth <= 0 {
			maxDepth = cfg.MaxDepth
		}
		return reportViolations(cmd.OutOrStdout(), notes, maxDepth)
	},
}

func init() {
	checkCmd.Flags().IntVar(&checkMaxDepth, "max-depth", 0, "depth limit to enforce (default $NOTEBOX_MAX_DEPTH)")
	rootCmd.AddCommand(checkCmd)
}

func reportViolations(w io.Writer, notes []store.Note, maxDepth int) error {
	violations := notetree.Check(notes, maxDepth)
	if len(violations) == 0 {
		fmt.Fprintf(w, "ok: %d notes, max depth %d\n", len(notes), maxDepth)
		return nil
	}
	for _, v := range violations {
		fmt.Fprintln(w, v.String())
	}
	return fmt.Errorf("%w: %d violations", errViolations, len(violations))
}
