package notetree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"notebox/api/internal/store"
)

// memoryStore is a transactional in-memory Repository. WithTx works on a copy
// of the rows and swaps it in only when fn succeeds; a mutex serialises
// transactions the way the advisory lock does in Postgres.
type memoryStore struct {
	mu     sync.Mutex
	notes  map[string]store.Note
	nextID int
	clock  time.Time

	// failOn makes the named repository method fail inside a transaction.
	failOn string
	txs    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		notes: make(map[string]store.Note),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++

	tx := &memoryTx{store: m, notes: make(map[string]store.Note, len(m.notes))}
	for id, note := range m.notes {
		tx.notes[id] = note
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.notes = tx.notes
	return nil
}

// seed inserts a note directly, bypassing validation.
func (m *memoryStore) seed(id string, parentID *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	m.notes[id] = store.Note{ID: id, Title: id, ParentID: parentID, BackdropPositionY: 50, CreatedAt: m.clock, UpdatedAt: m.clock}
}

func (m *memoryStore) snapshot() []store.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := make([]store.Note, 0, len(m.notes))
	for _, note := range m.notes {
		notes = append(notes, note)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}

func (m *memoryStore) note(id string) (store.Note, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[id]
	return note, ok
}

type memoryTx struct {
	store *memoryStore
	notes map[string]store.Note
}

var errInjected = errors.New("injected storage failure")

func (tx *memoryTx) fail(method string) error {
	if tx.store.failOn == method {
		return errInjected
	}
	return nil
}

func (tx *memoryTx) tick() time.Time {
	tx.store.clock = tx.store.clock.Add(time.Second)
	return tx.store.clock
}

func (tx *memoryTx) FindByID(_ context.Context, id string) (*store.Note, error) {
	if err := tx.fail("FindByID"); err != nil {
		return nil, err
	}
	note, ok := tx.notes[id]
	if !ok {
		return nil, nil
	}
	return &note, nil
}

func (tx *memoryTx) FindByParentID(_ context.Context, parentID *string) ([]store.Note, error) {
	if err := tx.fail("FindByParentID"); err != nil {
		return nil, err
	}
	var children []store.Note
	for _, note := range tx.notes {
		if sameParent(note.ParentID, parentID) {
			children = append(children, note)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (tx *memoryTx) Insert(_ context.Context, fields store.NoteFields) (store.Note, error) {
	if err := tx.fail("Insert"); err != nil {
		return store.Note{}, err
	}
	tx.store.nextID++
	now := tx.tick()
	note := store.Note{
		ID:                fmt.Sprintf("n%03d", tx.store.nextID),
		Title:             fields.Title,
		Content:           fields.Content,
		ParentID:          fields.ParentID,
		Icon:              fields.Icon,
		BackdropType:      fields.BackdropType,
		BackdropValue:     fields.BackdropValue,
		BackdropPositionY: fields.BackdropPositionY,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	tx.notes[note.ID] = note
	return note, nil
}

func (tx *memoryTx) UpdateFields(_ context.Context, id string, fields store.NoteFields) (bool, error) {
	if err := tx.fail("UpdateFields"); err != nil {
		return false, err
	}
	note, ok := tx.notes[id]
	if !ok {
		return false, nil
	}
	note.Title = fields.Title
	note.Content = fields.Content
	note.ParentID = fields.ParentID
	note.Icon = fields.Icon
	note.BackdropType = fields.BackdropType
	note.BackdropValue = fields.BackdropValue
	note.BackdropPositionY = fields.BackdropPositionY
	note.UpdatedAt = tx.tick()
	tx.notes[id] = note
	return true, nil
}

func (tx *memoryTx) UpdateParent(_ context.Context, id string, parentID *string) error {
	if err := tx.fail("UpdateParent"); err != nil {
		return err
	}
	note, ok := tx.notes[id]
	if !ok {
		return nil
	}
	note.ParentID = parentID
	note.UpdatedAt = tx.tick()
	tx.notes[id] = note
	return nil
}

func (tx *memoryTx) DeleteByID(_ context.Context, id string) error {
	if err := tx.fail("DeleteByID"); err != nil {
		return err
	}
	delete(tx.notes, id)
	return nil
}

func (tx *memoryTx) DeleteByIDs(_ context.Context, ids []string) error {
	if err := tx.fail("DeleteByIDs"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(tx.notes, id)
	}
	return nil
}

func ptr(value string) *string {
	return &value
}
