package notetree

import (
	"context"
	"fmt"

	"notebox/api/internal/store"
)

// Tree runs the read-side traversals against one repository. Inside WithTx it
// is bound to the transactional repository so gating reads see the same snapshot
// as the write that follows.
type Tree struct {
	repo Repository
}

// Bind returns a Tree reading through repo.
func Bind(repo Repository) Tree {
	return Tree{repo: repo}
}

// Depth is the number of parent hops from id to its root.
func (t Tree) Depth(ctx context.Context, id string) (int, error) {
	return t.depth(ctx, id)
}

// AncestorPath returns the notes from the root down to id itself.
func (t Tree) AncestorPath(ctx context.Context, id string) ([]store.Note, error) {
	return t.ancestorPath(ctx, id)
}

// MaxDescendantDepth is the height of the subtree below id.
func (t Tree) MaxDescendantDepth(ctx context.Context, id string) (int, error) {
	_, height, err := t.subtree(ctx, id)
	return height, err
}

// Descendants lists every note below id, breadth-first.
func (t Tree) Descendants(ctx context.Context, id string) ([]string, error) {
	ids, _, err := t.subtree(ctx, id)
	return ids, err
}

// depth counts parent hops from id to its root. A parent link that points at a
// missing row ends the walk as if the note were a root.
func (t Tree) depth(ctx context.Context, id string) (int, error) {
	note, err := t.repo.FindByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("find note %s: %w", id, err)
	}
	if note == nil {
		return 0, &NotFoundError{Entity: EntityNote, ID: id}
	}

	hops := 0
	visited := map[string]struct{}{note.ID: {}}
	for note.ParentID != nil {
		parentID := *note.ParentID
		if _, seen := visited[parentID]; seen {
			return 0, ErrCorruptTree
		}
		visited[parentID] = struct{}{}

		parent, err := t.repo.FindByID(ctx, parentID)
		if err != nil {
			return 0, fmt.Errorf("find note %s: %w", parentID, err)
		}
		if parent == nil {
			break
		}
		hops++
		note = parent
	}
	return hops, nil
}

// ancestorPath returns the notes from the root down to id itself. An unknown
// id yields an empty path.
func (t Tree) ancestorPath(ctx context.Context, id string) ([]store.Note, error) {
	path := make([]store.Note, 0, 4)
	visited := make(map[string]struct{})

	current := &id
	for current != nil {
		if _, seen := visited[*current]; seen {
			return nil, ErrCorruptTree
		}
		visited[*current] = struct{}{}

		note, err := t.repo.FindByID(ctx, *current)
		if err != nil {
			return nil, fmt.Errorf("find note %s: %w", *current, err)
		}
		if note == nil {
			break
		}
		path = append(path, *note)
		current = note.ParentID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// subtree walks the descendants of id breadth-first. It returns their ids in
// visit order and the height of the subtree below id (0 without children).
func (t Tree) subtree(ctx context.Context, id string) ([]string, int, error) {
	visited := map[string]struct{}{id: {}}
	var descendants []string
	height := 0

	frontier := []string{id}
	for len(frontier) > 0 {
		var next []string
		for _, parentID := range frontier {
			parentID := parentID
			children, err := t.repo.FindByParentID(ctx, &parentID)
			if err != nil {
				return nil, 0, fmt.Errorf("list children of %s: %w", parentID, err)
			}
			for _, child := range children {
				if _, seen := visited[child.ID]; seen {
					return nil, 0, ErrCorruptTree
				}
				visited[child.ID] = struct{}{}
				descendants = append(descendants, child.ID)
				next = append(next, child.ID)
			}
		}
		if len(next) > 0 {
			height++
		}
		frontier = next
	}
	return descendants, height, nil
}
