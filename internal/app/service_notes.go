package app

import (
	"context"
	"strings"

	"notebox/api/internal/export"
	"notebox/api/internal/search"
	"notebox/api/internal/store"
	"notebox/api/internal/util"
)

const defaultBackdropPositionY = 50

// NoteInput is the create/update payload. Update replaces every field,
// parentId included.
type NoteInput struct {
	Title             string  `json:"title"`
	Content           string  `json:"content"`
	ParentID          *string `json:"parentId"`
	Icon              *string `json:"icon"`
	BackdropType      *string `json:"backdropType"`
	BackdropValue     *string `json:"backdropValue"`
	BackdropPositionY *int    `json:"backdropPositionY"`
}

func (in NoteInput) fields() (store.NoteFields, error) {
	parentID := util.NormalizeOptional(in.ParentID)
	if parentID != nil && !util.IsUUID(*parentID) {
		return store.NoteFields{}, invalidID("parentId")
	}
	position := defaultBackdropPositionY
	if in.BackdropPositionY != nil {
		position = *in.BackdropPositionY
	}
	if position < 0 || position > 100 {
		return store.NoteFields{}, validationError("backdropPositionY must be between 0 and 100")
	}
	return store.NoteFields{
		Title:             in.Title,
		Content:           in.Content,
		ParentID:          parentID,
		Icon:              in.Icon,
		BackdropType:      in.BackdropType,
		BackdropValue:     in.BackdropValue,
		BackdropPositionY: position,
	}, nil
}

func requireID(field, value string) error {
	if !util.IsUUID(value) {
		return invalidID(field)
	}
	return nil
}

func (s *Service) ListNotes(ctx context.Context) ([]store.Note, error) {
	return s.store.ListNotes(ctx)
}

func (s *Service) RootNotes(ctx context.Context) ([]store.Note, error) {
	return s.store.ListRootNotes(ctx)
}

func (s *Service) GetNote(ctx context.Context, id string) (store.Note, error) {
	if err := requireID("id", id); err != nil {
		return store.Note{}, err
	}
	return s.tree.Get(ctx, id)
}

func (s *Service) CreateNote(ctx context.Context, in NoteInput) (store.Note, error) {
	fields, err := in.fields()
	if err != nil {
		return store.Note{}, err
	}
	note, err := s.tree.Create(ctx, fields)
	if err != nil {
		return store.Note{}, err
	}
	s.search.IndexNote(note)
	return note, nil
}

func (s *Service) UpdateNote(ctx context.Context, id string, in NoteInput) (store.Note, error) {
	if err := requireID("id", id); err != nil {
		return store.Note{}, err
	}
	fields, err := in.fields()
	if err != nil {
		return store.Note{}, err
	}
	note, err := s.tree.Update(ctx, id, fields)
	if err != nil {
		return store.Note{}, err
	}
	s.search.IndexNote(note)
	return note, nil
}

func (s *Service) MoveNote(ctx context.Context, id string, parentID *string) (store.Note, error) {
	if err := requireID("id", id); err != nil {
		return store.Note{}, err
	}
	parentID = util.NormalizeOptional(parentID)
	if parentID != nil && !util.IsUUID(*parentID) {
		return store.Note{}, invalidID("parentId")
	}
	note, err := s.tree.Move(ctx, id, parentID)
	if err != nil {
		return store.Note{}, err
	}
	s.search.IndexNote(note)
	return note, nil
}

// DeleteNote removes a note. In cascade mode its whole subtree goes with it;
// otherwise the children are re-attached to the note's parent.
func (s *Service) DeleteNote(ctx context.Context, id string, cascade bool) error {
	if err := requireID("id", id); err != nil {
		return err
	}

	result, err := s.tree.Delete(ctx, id, cascade)
	if err != nil {
		return err
	}

	s.search.DeleteNotes(result.Removed)
	for _, child := range result.Reparented {
		s.search.IndexNote(child)
	}
	return nil
}

// NoteChildren lists direct children. An unknown parent has none.
func (s *Service) NoteChildren(ctx context.Context, id string) ([]store.Note, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.tree.Children(ctx, &id)
}

// NotePath returns the chain from the root down to the note, empty for an
// unknown id.
func (s *Service) NotePath(ctx context.Context, id string) ([]store.Note, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.tree.AncestorPath(ctx, id)
}

func (s *Service) ExportNote(ctx context.Context, id, rawFormat string) (*export.Result, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(rawFormat)))
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{NoteID: id, Format: format})
}

func (s *Service) Search(ctx context.Context, text, parentID string, limit, offset int) (search.Response, error) {
	if parentID != "" && !util.IsUUID(parentID) {
		return search.Response{}, invalidID("parentId")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(ctx, search.Query{
		Text:     strings.TrimSpace(text),
		ParentID: parentID,
		Limit:    limit,
		Offset:   offset,
	}), nil
}
