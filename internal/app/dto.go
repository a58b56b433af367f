package app

import (
	"encoding/json"

	"notebox/api/internal/storage"
	"notebox/api/internal/store"
)

// JSON shapes of the REST API. Timestamps are epoch milliseconds.

type noteDTO struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Content           string  `json:"content"`
	ParentID          *string `json:"parentId"`
	Icon              *string `json:"icon"`
	BackdropType      *string `json:"backdropType"`
	BackdropValue     *string `json:"backdropValue"`
	BackdropPositionY int     `json:"backdropPositionY"`
	CreatedAt         int64   `json:"createdAt"`
	UpdatedAt         int64   `json:"updatedAt"`
}

func toNoteDTO(note store.Note) noteDTO {
	return noteDTO{
		ID:                note.ID,
		Title:             note.Title,
		Content:           note.Content,
		ParentID:          note.ParentID,
		Icon:              note.Icon,
		BackdropType:      note.BackdropType,
		BackdropValue:     note.BackdropValue,
		BackdropPositionY: note.BackdropPositionY,
		CreatedAt:         note.CreatedAt.UnixMilli(),
		UpdatedAt:         note.UpdatedAt.UnixMilli(),
	}
}

func toNoteDTOs(notes []store.Note) []noteDTO {
	out := make([]noteDTO, 0, len(notes))
	for _, note := range notes {
		out = append(out, toNoteDTO(note))
	}
	return out
}

type userDTO struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

func toUserDTO(user store.User) userDTO {
	return userDTO{ID: user.ID, Email: user.Email, Name: user.Name, AvatarURL: user.AvatarURL}
}

type columnDTO struct {
	ID         string               `json:"id"`
	DatabaseID string               `json:"databaseId"`
	Name       string               `json:"name"`
	Type       store.ColumnType     `json:"type"`
	Options    []store.SelectOption `json:"options"`
	Position   int                  `json:"position"`
	CreatedAt  int64                `json:"createdAt"`
}

func toColumnDTO(column store.Column) columnDTO {
	return columnDTO{
		ID:         column.ID,
		DatabaseID: column.DatabaseID,
		Name:       column.Name,
		Type:       column.Type,
		Options:    column.Options,
		Position:   column.Position,
		CreatedAt:  column.CreatedAt.UnixMilli(),
	}
}

type databaseDTO struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	NoteID    *string     `json:"noteId"`
	Columns   []columnDTO `json:"columns"`
	CreatedAt int64       `json:"createdAt"`
	UpdatedAt int64       `json:"updatedAt"`
}

func toDatabaseDTO(view DatabaseView) databaseDTO {
	columns := make([]columnDTO, 0, len(view.Columns))
	for _, column := range view.Columns {
		columns = append(columns, toColumnDTO(column))
	}
	return databaseDTO{
		ID:        view.ID,
		Name:      view.Name,
		NoteID:    view.NoteID,
		Columns:   columns,
		CreatedAt: view.CreatedAt.UnixMilli(),
		UpdatedAt: view.UpdatedAt.UnixMilli(),
	}
}

type recordDTO struct {
	ID         string                     `json:"id"`
	DatabaseID string                     `json:"databaseId"`
	Data       map[string]json.RawMessage `json:"data"`
	CreatedAt  int64                      `json:"createdAt"`
	UpdatedAt  int64                      `json:"updatedAt"`
}

func toRecordDTO(record store.Record) recordDTO {
	data := record.Data
	if data == nil {
		data = map[string]json.RawMessage{}
	}
	return recordDTO{
		ID:         record.ID,
		DatabaseID: record.DatabaseID,
		Data:       data,
		CreatedAt:  record.CreatedAt.UnixMilli(),
		UpdatedAt:  record.UpdatedAt.UnixMilli(),
	}
}

type uploadDTO struct {
	FileID      string `json:"fileId"`
	Filename    string `json:"filename"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func toUploadDTO(upload storage.Upload) uploadDTO {
	return uploadDTO{
		FileID:      upload.FileID,
		Filename:    upload.Filename,
		Key:         upload.Key,
		ContentType: upload.ContentType,
		Size:        upload.Size,
	}
}
