package notetree

import (
	"errors"
	"fmt"
)

const (
	EntityNote   = "note"
	EntityParent = "parent"
)

// NotFoundError reports a missing note. Entity tells which lookup failed:
// the note being operated on or the requested parent.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DepthExceededError reports a change that would place a note deeper than MaxDepth.
type DepthExceededError struct {
	MaxDepth int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("maximum nesting depth of %d levels exceeded", e.MaxDepth)
}

var (
	ErrSelfParent = errors.New("note cannot be its own parent")
	ErrCycle      = errors.New("cannot move note under its own descendant")

	// ErrCorruptTree is returned when a traversal revisits a note, which
	// only happens if stored parent links already form a cycle.
	ErrCorruptTree = errors.New("note tree contains a cycle")
)

// IsNotFound reports whether err is a NotFoundError for the given entity.
// An empty entity matches any NotFoundError.
func IsNotFound(err error, entity string) bool {
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		return false
	}
	return entity == "" || notFound.Entity == entity
}
