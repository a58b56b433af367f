// Package notetree keeps the note hierarchy a forest of bounded depth.
//
// Every mutation validates and writes inside a single transaction obtained from
// a TxRunner, so concurrent edits cannot combine into a cycle or an over-deep
// branch. The package performs no logging; callers decide what to report.
package notetree

import (
	"context"
	"fmt"

	"notebox/api/internal/store"
)

// DefaultMaxDepth is the deepest allowed level. Roots sit at depth 0.
const DefaultMaxDepth = 3

// Repository is the storage contract the tree needs. FindByID returns nil, nil
// for a missing note and FindByParentID with a nil parent lists the roots.
type Repository interface {
	FindByID(ctx context.Context, id string) (*store.Note, error)
	FindByParentID(ctx context.Context, parentID *string) ([]store.Note, error)
	Insert(ctx context.Context, fields store.NoteFields) (store.Note, error)
	UpdateFields(ctx context.Context, id string, fields store.NoteFields) (bool, error)
	UpdateParent(ctx context.Context, id string, parentID *string) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByIDs(ctx context.Context, ids []string) error
}

// TxRunner runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(Repository) error) error
}

type Service struct {
	runner   TxRunner
	maxDepth int
}

type Option func(*Service)

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(s *Service) {
		if depth >= 1 {
			s.maxDepth = depth
		}
	}
}

func New(runner TxRunner, opts ...Option) *Service {
	s := &Service{runner: runner, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) MaxDepth() int {
	return s.maxDepth
}

// Create inserts a note. A parent, when given, must exist and sit above MaxDepth.
func (s *Service) Create(ctx context.Context, fields store.NoteFields) (store.Note, error) {
	var created store.Note
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		if fields.ParentID != nil {
			parent, err := repo.FindByID(ctx, *fields.ParentID)
			if err != nil {
				return fmt.Errorf("find parent %s: %w", *fields.ParentID, err)
			}
			if parent == nil {
				return &NotFoundError{Entity: EntityParent, ID: *fields.ParentID}
			}
			depth, err := Bind(repo).depth(ctx, parent.ID)
			if err != nil {
				return err
			}
			if depth >= s.maxDepth {
				return &DepthExceededError{MaxDepth: s.maxDepth}
			}
		}

		note, err := repo.Insert(ctx, fields)
		if err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		created = note
		return nil
	})
	if err != nil {
		return store.Note{}, err
	}
	return created, nil
}

// Update replaces the writable fields of a note. A changed ParentID goes
// through the same validation as Move before anything is written.
func (s *Service) Update(ctx context.Context, id string, fields store.NoteFields) (store.Note, error) {
	var updated store.Note
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		existing, err := findNote(ctx, repo, id)
		if err != nil {
			return err
		}
		if !sameParent(existing.ParentID, fields.ParentID) {
			if err := s.validateMove(ctx, repo, id, fields.ParentID); err != nil {
				return err
			}
		}

		ok, err := repo.UpdateFields(ctx, id, fields)
		if err != nil {
			return fmt.Errorf("update note %s: %w", id, err)
		}
		if !ok {
			return &NotFoundError{Entity: EntityNote, ID: id}
		}
		updated, err = reread(ctx, repo, id)
		return err
	})
	if err != nil {
		return store.Note{}, err
	}
	return updated, nil
}

// Move re-parents a note together with its subtree. A nil parent makes it a root.
func (s *Service) Move(ctx context.Context, id string, newParentID *string) (store.Note, error) {
	var moved store.Note
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		if _, err := findNote(ctx, repo, id); err != nil {
			return err
		}
		if err := s.validateMove(ctx, repo, id, newParentID); err != nil {
			return err
		}
		if err := repo.UpdateParent(ctx, id, newParentID); err != nil {
			return fmt.Errorf("update parent of %s: %w", id, err)
		}
		var err error
		moved, err = reread(ctx, repo, id)
		return err
	})
	if err != nil {
		return store.Note{}, err
	}
	return moved, nil
}

// Deletion reports what a Delete changed. Reparented holds the direct
// children of an orphan delete as re-read after their parent was switched.
type Deletion struct {
	Removed    []string
	Reparented []store.Note
}

// Delete removes a note. With cascade every descendant goes too; otherwise the
// direct children are re-attached to the deleted note's parent.
func (s *Service) Delete(ctx context.Context, id string, cascade bool) (Deletion, error) {
	var result Deletion
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		note, err := findNote(ctx, repo, id)
		if err != nil {
			return err
		}

		if cascade {
			descendants, _, err := Bind(repo).subtree(ctx, id)
			if err != nil {
				return err
			}
			ids := append([]string{id}, descendants...)
			if err := repo.DeleteByIDs(ctx, ids); err != nil {
				return fmt.Errorf("delete subtree of %s: %w", id, err)
			}
			result = Deletion{Removed: ids}
			return nil
		}

		children, err := repo.FindByParentID(ctx, &id)
		if err != nil {
			return fmt.Errorf("list children of %s: %w", id, err)
		}
		reparented := make([]store.Note, 0, len(children))
		for _, child := range children {
			if err := repo.UpdateParent(ctx, child.ID, note.ParentID); err != nil {
				return fmt.Errorf("re-parent %s: %w", child.ID, err)
			}
			moved, err := reread(ctx, repo, child.ID)
			if err != nil {
				return err
			}
			reparented = append(reparented, moved)
		}
		if err := repo.DeleteByID(ctx, id); err != nil {
			return fmt.Errorf("delete note %s: %w", id, err)
		}
		result = Deletion{Removed: []string{id}, Reparented: reparented}
		return nil
	})
	if err != nil {
		return Deletion{}, err
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id string) (store.Note, error) {
	var note store.Note
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		found, err := findNote(ctx, repo, id)
		if err != nil {
			return err
		}
		note = *found
		return nil
	})
	return note, err
}

// Children lists the direct children of parentID, or the roots when it is nil.
func (s *Service) Children(ctx context.Context, parentID *string) ([]store.Note, error) {
	var children []store.Note
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		var err error
		children, err = repo.FindByParentID(ctx, parentID)
		if err != nil {
			return fmt.Errorf("list children: %w", err)
		}
		return nil
	})
	return children, err
}

func (s *Service) AncestorPath(ctx context.Context, id string) ([]store.Note, error) {
	var path []store.Note
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		var err error
		path, err = Bind(repo).AncestorPath(ctx, id)
		return err
	})
	return path, err
}

func (s *Service) Depth(ctx context.Context, id string) (int, error) {
	var depth int
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		var err error
		depth, err = Bind(repo).Depth(ctx, id)
		return err
	})
	return depth, err
}

func (s *Service) MaxDescendantDepth(ctx context.Context, id string) (int, error) {
	var height int
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		var err error
		height, err = Bind(repo).MaxDescendantDepth(ctx, id)
		return err
	})
	return height, err
}

func (s *Service) Descendants(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := s.runner.WithTx(ctx, func(repo Repository) error {
		var err error
		ids, err = Bind(repo).Descendants(ctx, id)
		return err
	})
	return ids, err
}

// validateMove checks, in order: self parent, parent existence, cycle, depth.
// The caller has already confirmed that id exists.
func (s *Service) validateMove(ctx context.Context, repo Repository, id string, newParentID *string) error {
	if newParentID == nil {
		return nil
	}
	if *newParentID == id {
		return ErrSelfParent
	}

	parent, err := repo.FindByID(ctx, *newParentID)
	if err != nil {
		return fmt.Errorf("find parent %s: %w", *newParentID, err)
	}
	if parent == nil {
		return &NotFoundError{Entity: EntityParent, ID: *newParentID}
	}

	tree := Bind(repo)
	descendants, height, err := tree.subtree(ctx, id)
	if err != nil {
		return err
	}
	for _, descendantID := range descendants {
		if descendantID == parent.ID {
			return ErrCycle
		}
	}

	parentDepth, err := tree.depth(ctx, parent.ID)
	if err != nil {
		return err
	}
	if parentDepth+1+height > s.maxDepth {
		return &DepthExceededError{MaxDepth: s.maxDepth}
	}
	return nil
}

func findNote(ctx context.Context, repo Repository, id string) (*store.Note, error) {
	note, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find note %s: %w", id, err)
	}
	if note == nil {
		return nil, &NotFoundError{Entity: EntityNote, ID: id}
	}
	return note, nil
}

func reread(ctx context.Context, repo Repository, id string) (store.Note, error) {
	note, err := findNote(ctx, repo, id)
	if err != nil {
		return store.Note{}, err
	}
	return *note, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
