package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"notebox/api/internal/store"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the note hierarchy",
	Args:  cobra.NoArgs,
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
		printTree(cmd.OutOrStdout(), notes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

// printTree writes one line per note, indented two spaces per level.
// Notes that cannot be reached from a root (dangling parent or cycle) are
// listed at the end.
func printTree(w io.Writer, notes []store.Note) {
	byID := make(map[string]store.Note, len(notes))
	children := map[string][]store.Note{}
	var roots []store.Note
	for _, note := range notes {
		byID[note.ID] = note
	}
	for _, note := range notes {
		if note.ParentID == nil {
			roots = append(roots, note)
			continue
		}
		children[*note.ParentID] = append(children[*note.ParentID], note)
	}

	seen := make(map[string]bool, len(notes))
	var walk func(note store.Note, level int)
	walk = func(note store.Note, level int) {
		if seen[note.ID] {
			return
		}
		seen[note.ID] = true
		fmt.Fprintf(w, "%s%s  %s\n", strings.Repeat("  ", level), label(note), note.ID)
		kids := children[note.ID]
		sortNotes(kids)
		for _, child := range kids {
			walk(child, level+1)
		}
	}

	sortNotes(roots)
	for _, root := range roots {
		walk(root, 0)
	}

	var stray []store.Note
	for _, note := range notes {
		if !seen[note.ID] {
			stray = append(stray, note)
		}
	}
	if len(stray) == 0 {
		return
	}
	sortNotes(stray)
	fmt.Fprintln(w, "unreachable:")
	for _, note := range stray {
		reason := "cycle"
		if _, ok := byID[*note.ParentID]; !ok {
			reason = "missing parent"
		}
		fmt.Fprintf(w, "  %s  %s (%s)\n", label(note), note.ID, reason)
	}
}

func label(note store.Note) string {
	title := strings.TrimSpace(note.Title)
	if title == "" {
		title = "Untitled"
	}
	if note.Icon != nil && *note.Icon != "" {
		return *note.Icon + " " + title
	}
	return title
}

func sortNotes(notes []store.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.Before(notes[j].CreatedAt)
		}
		return notes[i].ID < notes[j].ID
	})
}
