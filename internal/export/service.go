package export

import (
	"context"
	"fmt"
	"strings"

	"notebox/api/internal/notetree"
	"notebox/api/internal/store"
)

// NoteSource resolves a note together with its ancestors, root first.
type NoteSource interface {
	AncestorPath(ctx context.Context, id string) ([]store.Note, error)
}

type renderFunc func(ctx context.Context, html, title string) (*Result, error)

// Service renders notes into downloadable files.
type Service struct {
	notes NoteSource
	pdf   renderFunc
	docx  renderFunc
}

// NewService builds an exporter. chromePath may be empty to search PATH.
func NewService(notes NoteSource, chromePath string) *Service {
	return &Service{
		notes: notes,
		pdf: func(ctx context.Context, html, title string) (*Result, error) {
			return exportPDF(ctx, chromePath, html, title)
		},
		docx: exportDOCX,
	}
}

// Export renders the requested note in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	path, err := s.notes.AncestorPath(ctx, req.NoteID)
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}
	if len(path) == 0 {
		return nil, &notetree.NotFoundError{Entity: notetree.EntityNote, ID: req.NoteID}
	}

	note := path[len(path)-1]
	data := TemplateData{
		Title:       displayTitle(note.Title),
		ContentHTML: SafeHTML(ContentToHTML(note.Content)),
		UpdatedAt:   note.UpdatedAt,
	}
	if note.Icon != nil {
		data.Icon = *note.Icon
	}
	for _, ancestor := range path[:len(path)-1] {
		data.Breadcrumb = append(data.Breadcrumb, displayTitle(ancestor.Title))
	}

	html, err := RenderNoteHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render note: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(note.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF, "":
		return s.pdf(ctx, html, note.Title)
	case FormatDOCX:
		return s.docx(ctx, html, note.Title)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Untitled"
	}
	return title
}
