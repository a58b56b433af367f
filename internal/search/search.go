package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Snippet  string  `json:"snippet"`
	ParentID *string `json:"parentId"`
}

// Query describes a search request.
type Query struct {
	Text string
	// ParentID restricts hits to direct children of one note; empty means all notes.
	ParentID string
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer pushes notes into a search index.
type Indexer interface {
	IndexNotes(notes []NoteRecord) error
	DeleteNotes(ids []string) error
}

// NoteRecord is the data we index for a note. Content holds plain text.
type NoteRecord struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	ParentID  *string `json:"parentId"`
	UpdatedAt int64   `json:"updatedAt"`
}
