package search

import (
	"context"
	"log"

	"notebox/api/internal/store"
)

// primary is what the facade needs from Meilisearch.
type primary interface {
	Searcher
	Indexer
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili primary
	pgfts *PgFTS
	async bool
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	if meili == nil {
		return &Service{pgfts: pgfts, async: true}
	}
	return &Service{meili: meili, pgfts: pgfts, async: true}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexNote indexes a note (fire-and-forget to Meilisearch).
func (s *Service) IndexNote(note store.Note) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := RecordFromNote(note)
	s.run(func() {
		if err := s.meili.IndexNotes([]NoteRecord{record}); err != nil {
			log.Printf("search: index note %s: %v", record.ID, err)
		}
	})
}

// DeleteNotes removes notes from the search index (fire-and-forget).
func (s *Service) DeleteNotes(ids []string) {
	if s.meili == nil || !s.meili.Healthy() || len(ids) == 0 {
		return
	}
	s.run(func() {
		if err := s.meili.DeleteNotes(ids); err != nil {
			log.Printf("search: delete notes %v: %v", ids, err)
		}
	})
}

// ReindexAllFromPG pushes every note from PostgreSQL into Meilisearch and
// returns how many were sent.
func (s *Service) ReindexAllFromPG(ctx context.Context) (int, error) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return 0, nil
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.meili.IndexNotes(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Service) run(fn func()) {
	if s.async {
		go fn()
		return
	}
	fn()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
