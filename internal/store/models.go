package store

import (
	"encoding/json"
	"time"
)

// Note is a node of the page tree. ParentID is nil for roots.
type Note struct {
	ID                string
	Title             string
	Content           string
	ParentID          *string
	Icon              *string
	BackdropType      *string
	BackdropValue     *string
	BackdropPositionY int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NoteFields is the writable part of a Note.
type NoteFields struct {
	Title             string
	Content           string
	ParentID          *string
	Icon              *string
	BackdropType      *string
	BackdropValue     *string
	BackdropPositionY int
}

// Fields returns the writable part of the note.
func (n Note) Fields() NoteFields {
	return NoteFields{
		Title:             n.Title,
		Content:           n.Content,
		ParentID:          n.ParentID,
		Icon:              n.Icon,
		BackdropType:      n.BackdropType,
		BackdropValue:     n.BackdropValue,
		BackdropPositionY: n.BackdropPositionY,
	}
}

type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type ColumnType string

const (
	ColumnText        ColumnType = "TEXT"
	ColumnNumber      ColumnType = "NUMBER"
	ColumnBoolean     ColumnType = "BOOLEAN"
	ColumnDate        ColumnType = "DATE"
	ColumnSelect      ColumnType = "SELECT"
	ColumnMultiSelect ColumnType = "MULTI_SELECT"
	ColumnFile        ColumnType = "FILE"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnText, ColumnNumber, ColumnBoolean, ColumnDate, ColumnSelect, ColumnMultiSelect, ColumnFile:
		return true
	default:
		return false
	}
}

type SelectOption struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Color *string `json:"color"`
}

// CustomDatabase is a user-defined table, optionally embedded in a note page.
type CustomDatabase struct {
	ID        string
	Name      string
	NoteID    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Column struct {
	ID         string
	DatabaseID string
	Name       string
	Type       ColumnType
	Options    []SelectOption
	Position   int
	CreatedAt  time.Time
}

type Record struct {
	ID         string
	DatabaseID string
	Data       map[string]json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NoteSearchRecord is the projection of a note pushed to the search index.
type NoteSearchRecord struct {
	ID        string
	Title     string
	Content   string
	ParentID  *string
	UpdatedAt time.Time
}
