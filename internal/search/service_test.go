package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"notebox/api/internal/store"
)

type fakePrimary struct {
	healthy   bool
	searchErr error
	results   []Result
	indexed   []NoteRecord
	deleted   []string
}

func (f *fakePrimary) Search(context.Context, Query) ([]Result, int, error) {
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	return f.results, len(f.results), nil
}
func (f *fakePrimary) Healthy() bool { return f.healthy }
func (f *fakePrimary) IndexNotes(notes []NoteRecord) error {
	f.indexed = append(f.indexed, notes...)
	return nil
}
func (f *fakePrimary) DeleteNotes(ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

type fakeNotes struct {
	rows []store.NoteSearchRecord
}

func (f *fakeNotes) SearchNotes(_ context.Context, query string, _ int) ([]store.NoteSearchRecord, error) {
	var out []store.NoteSearchRecord
	for _, row := range f.rows {
		if strings.Contains(strings.ToLower(row.Title+" "+row.Content), strings.ToLower(query)) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeNotes) LoadAllNoteRecords(context.Context) ([]store.NoteSearchRecord, error) {
	return f.rows, nil
}

func parent(id string) *string { return &id }

func newTestService(meili *fakePrimary, rows []store.NoteSearchRecord) *Service {
	svc := &Service{pgfts: NewPgFTS(&fakeNotes{rows: rows})}
	if meili != nil {
		svc.meili = meili
	}
	return svc
}

func TestSearchPrefersHealthyMeili(t *testing.T) {
	meili := &fakePrimary{healthy: true, results: []Result{{ID: "m1", Title: "from meili"}}}
	svc := newTestService(meili, []store.NoteSearchRecord{{ID: "p1", Title: "from postgres"}})

	resp := svc.Search(context.Background(), Query{Text: "from"})
	if len(resp.Results) != 1 || resp.Results[0].ID != "m1" {
		t.Fatalf("expected meili result, got %+v", resp.Results)
	}
}

func TestSearchFallsBackWhenMeiliFails(t *testing.T) {
	meili := &fakePrimary{healthy: true, searchErr: errors.New("down")}
	svc := newTestService(meili, []store.NoteSearchRecord{{ID: "p1", Title: "Roadmap", Content: "plan"}})

	resp := svc.Search(context.Background(), Query{Text: "roadmap"})
	if len(resp.Results) != 1 || resp.Results[0].ID != "p1" {
		t.Fatalf("expected postgres fallback result, got %+v", resp.Results)
	}
	if resp.Query != "roadmap" {
		t.Fatalf("expected query echoed, got %q", resp.Query)
	}
}

func TestSearchWithoutMeiliUsesPostgres(t *testing.T) {
	svc := NewService(nil, NewPgFTS(&fakeNotes{rows: []store.NoteSearchRecord{{ID: "p1", Title: "Budget"}}}))

	resp := svc.Search(context.Background(), Query{Text: "budget"})
	if resp.Total != 1 {
		t.Fatalf("expected one hit, got %+v", resp)
	}
	if empty := svc.Search(context.Background(), Query{Text: "  "}); empty.Results == nil || len(empty.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", empty.Results)
	}
}

func TestPgFTSFiltersByParentAndPages(t *testing.T) {
	rows := []store.NoteSearchRecord{
		{ID: "a", Title: "plan one", ParentID: parent("root")},
		{ID: "b", Title: "plan two", ParentID: parent("root")},
		{ID: "c", Title: "plan three", ParentID: parent("other")},
		{ID: "d", Title: "plan four"},
	}
	fts := NewPgFTS(&fakeNotes{rows: rows})

	results, total, err := fts.Search(context.Background(), Query{Text: "plan", ParentID: "root", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 matches under root, got %d", total)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Fatalf("expected second page to hold b, got %+v", results)
	}

	past, _, err := fts.Search(context.Background(), Query{Text: "plan", Offset: 10})
	if err != nil || len(past) != 0 {
		t.Fatalf("expected empty page past the end, got %+v %v", past, err)
	}
}

func TestIndexAndDeleteGoToMeili(t *testing.T) {
	meili := &fakePrimary{healthy: true}
	svc := newTestService(meili, nil)

	svc.IndexNote(store.Note{ID: "n1", Title: "Hello", Content: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"world"}]}]}`, UpdatedAt: time.UnixMilli(42)})
	svc.DeleteNotes([]string{"n1", "n2"})

	if len(meili.indexed) != 1 || meili.indexed[0].Content != "world" || meili.indexed[0].UpdatedAt != 42 {
		t.Fatalf("expected plain-text record indexed, got %+v", meili.indexed)
	}
	if len(meili.deleted) != 2 {
		t.Fatalf("expected both ids deleted, got %v", meili.deleted)
	}
}

func TestUnhealthyMeiliSkipsIndexing(t *testing.T) {
	meili := &fakePrimary{healthy: false}
	svc := newTestService(meili, nil)

	svc.IndexNote(store.Note{ID: "n1"})
	if len(meili.indexed) != 0 {
		t.Fatal("expected no indexing while meili is unhealthy")
	}
	if n, err := svc.ReindexAllFromPG(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected reindex skipped, got %d %v", n, err)
	}
}

func TestReindexAllFromPG(t *testing.T) {
	meili := &fakePrimary{healthy: true}
	svc := newTestService(meili, []store.NoteSearchRecord{{ID: "a", Content: "<p>Hi <b>there</b></p>"}, {ID: "b"}})

	n, err := svc.ReindexAllFromPG(context.Background())
	if err != nil {
		t.Fatalf("ReindexAllFromPG() error = %v", err)
	}
	if n != 2 || len(meili.indexed) != 2 {
		t.Fatalf("expected 2 notes reindexed, got %d", n)
	}
	if meili.indexed[0].Content != "Hi there" {
		t.Fatalf("expected html stripped, got %q", meili.indexed[0].Content)
	}
}

func TestSnippetCutsOnWordBoundary(t *testing.T) {
	text := strings.Repeat("word ", 50)
	got := Snippet(text, 22)
	if !strings.HasSuffix(got, "…") || strings.HasSuffix(strings.TrimSuffix(got, "…"), "wor") {
		t.Fatalf("unexpected snippet %q", got)
	}
	if Snippet("short", 10) != "short" {
		t.Fatal("expected short text unchanged")
	}
}
