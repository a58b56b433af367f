package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"notebox/api/internal/notetree"
	"notebox/api/internal/store"
	"notebox/api/internal/util"
)

type DatabaseInput struct {
	Name   string  `json:"name"`
	NoteID *string `json:"noteId"`
}

type ColumnInput struct {
	Name     string               `json:"name"`
	Type     store.ColumnType     `json:"type"`
	Options  []store.SelectOption `json:"options"`
	Position int                  `json:"position"`
}

type RecordInput struct {
	Data map[string]json.RawMessage `json:"data"`
}

// DatabaseView is a custom database with its ordered columns.
type DatabaseView struct {
	store.CustomDatabase
	Columns []store.Column
}

func (s *Service) ListDatabases(ctx context.Context) ([]DatabaseView, error) {
	items, err := s.store.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	columns, err := s.store.ListColumns(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]DatabaseView, 0, len(items))
	for _, item := range items {
		views = append(views, DatabaseView{CustomDatabase: item, Columns: columns[item.ID]})
	}
	return views, nil
}

func (s *Service) GetDatabase(ctx context.Context, id string) (DatabaseView, error) {
	if err := requireID("id", id); err != nil {
		return DatabaseView{}, err
	}
	item, err := s.store.GetDatabase(ctx, id)
	if err != nil {
		return DatabaseView{}, err
	}
	return s.withColumns(ctx, item)
}

func (s *Service) CreateDatabase(ctx context.Context, in DatabaseInput) (DatabaseView, error) {
	name, noteID, err := s.checkDatabaseInput(ctx, in)
	if err != nil {
		return DatabaseView{}, err
	}
	item, err := s.store.InsertDatabase(ctx, name, noteID)
	if err != nil {
		return DatabaseView{}, err
	}
	return DatabaseView{CustomDatabase: item, Columns: []store.Column{}}, nil
}

func (s *Service) UpdateDatabase(ctx context.Context, id string, in DatabaseInput) (DatabaseView, error) {
	if err := requireID("id", id); err != nil {
		return DatabaseView{}, err
	}
	name, noteID, err := s.checkDatabaseInput(ctx, in)
	if err != nil {
		return DatabaseView{}, err
	}
	item, err := s.store.UpdateDatabase(ctx, id, name, noteID)
	if err != nil {
		return DatabaseView{}, err
	}
	return s.withColumns(ctx, item)
}

func (s *Service) DeleteDatabase(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	deleted, err := s.store.DeleteDatabase(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("Database not found")
	}
	return nil
}

func (s *Service) withColumns(ctx context.Context, item store.CustomDatabase) (DatabaseView, error) {
	columns, err := s.store.ListColumns(ctx, []string{item.ID})
	if err != nil {
		return DatabaseView{}, err
	}
	view := DatabaseView{CustomDatabase: item, Columns: columns[item.ID]}
	if view.Columns == nil {
		view.Columns = []store.Column{}
	}
	return view, nil
}

func (s *Service) checkDatabaseInput(ctx context.Context, in DatabaseInput) (string, *string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, validationError("name is required")
	}
	noteID := util.NormalizeOptional(in.NoteID)
	if noteID == nil {
		return name, nil, nil
	}
	if !util.IsUUID(*noteID) {
		return "", nil, invalidID("noteId")
	}
	if _, err := s.tree.Get(ctx, *noteID); err != nil {
		if notetree.IsNotFound(err, notetree.EntityNote) {
			return "", nil, domainError(http.StatusBadRequest, "NOTE_NOT_FOUND", "Linked note not found", nil)
		}
		return "", nil, err
	}
	return name, noteID, nil
}

func (s *Service) AddColumn(ctx context.Context, databaseID string, in ColumnInput) (store.Column, error) {
	if err := s.requireDatabase(ctx, databaseID); err != nil {
		return store.Column{}, err
	}
	column, err := checkColumnInput(in)
	if err != nil {
		return store.Column{}, err
	}
	column.DatabaseID = databaseID
	return s.store.InsertColumn(ctx, column)
}

func (s *Service) UpdateColumn(ctx context.Context, databaseID, columnID string, in ColumnInput) (store.Column, error) {
	if err := requireID("id", databaseID); err != nil {
		return store.Column{}, err
	}
	if err := requireID("columnId", columnID); err != nil {
		return store.Column{}, err
	}
	column, err := checkColumnInput(in)
	if err != nil {
		return store.Column{}, err
	}
	column.ID = columnID
	column.DatabaseID = databaseID
	return s.store.UpdateColumn(ctx, column)
}

func (s *Service) DeleteColumn(ctx context.Context, databaseID, columnID string) error {
	if err := requireID("id", databaseID); err != nil {
		return err
	}
	if err := requireID("columnId", columnID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteColumn(ctx, databaseID, columnID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("Column not found")
	}
	return nil
}

func checkColumnInput(in ColumnInput) (store.Column, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Column{}, validationError("name is required")
	}
	columnType := store.ColumnType(strings.ToUpper(string(in.Type)))
	if !columnType.Valid() {
		return store.Column{}, validationError(fmt.Sprintf("unknown column type %q", in.Type))
	}
	if in.Position < 0 {
		return store.Column{}, validationError("position must not be negative")
	}
	return store.Column{
		Name:     name,
		Type:     columnType,
		Options:  in.Options,
		Position: in.Position,
	}, nil
}

func (s *Service) ListRecords(ctx context.Context, databaseID string) ([]store.Record, error) {
	if err := s.requireDatabase(ctx, databaseID); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, databaseID)
}

func (s *Service) CreateRecord(ctx context.Context, databaseID string, in RecordInput) (store.Record, error) {
	if err := s.requireDatabase(ctx, databaseID); err != nil {
		return store.Record{}, err
	}
	return s.store.InsertRecord(ctx, databaseID, in.Data)
}

func (s *Service) UpdateRecord(ctx context.Context, databaseID, recordID string, in RecordInput) (store.Record, error) {
	if err := requireID("id", databaseID); err != nil {
		return store.Record{}, err
	}
	if err := requireID("recordId", recordID); err != nil {
		return store.Record{}, err
	}
	return s.store.UpdateRecord(ctx, databaseID, recordID, in.Data)
}

func (s *Service) DeleteRecord(ctx context.Context, databaseID, recordID string) error {
	if err := requireID("id", databaseID); err != nil {
		return err
	}
	if err := requireID("recordId", recordID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteRecord(ctx, databaseID, recordID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("Record not found")
	}
	return nil
}

func (s *Service) requireDatabase(ctx context.Context, databaseID string) error {
	if err := requireID("id", databaseID); err != nil {
		return err
	}
	_, err := s.store.GetDatabase(ctx, databaseID)
	return err
}
