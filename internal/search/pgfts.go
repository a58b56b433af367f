package search

import (
	"context"
	"fmt"
	"strings"

	"notebox/api/internal/store"
)

type noteSource interface {
	SearchNotes(ctx context.Context, query string, limit int) ([]store.NoteSearchRecord, error)
	LoadAllNoteRecords(ctx context.Context) ([]store.NoteSearchRecord, error)
}

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	notes noteSource
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(notes noteSource) *PgFTS {
	return &PgFTS{notes: notes}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks notes with plainto_tsquery over title and content. Paging and
// the parent filter are applied to the ranked rows.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := p.notes.SearchNotes(ctx, q.Text, offset+limit+200)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}

	matched := make([]Result, 0, len(rows))
	for _, row := range rows {
		if q.ParentID != "" && (row.ParentID == nil || *row.ParentID != q.ParentID) {
			continue
		}
		matched = append(matched, Result{
			ID:       row.ID,
			Title:    row.Title,
			Snippet:  Snippet(PlainText(row.Content), 160),
			ParentID: row.ParentID,
		})
	}

	total := len(matched)
	if offset >= total {
		return []Result{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// LoadAllRecords returns every note in its index projection for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]NoteRecord, error) {
	rows, err := p.notes.LoadAllNoteRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	records := make([]NoteRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromSearchRow(row))
	}
	return records, nil
}
