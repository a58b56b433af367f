package notetree

import (
	"fmt"
	"sort"

	"notebox/api/internal/store"
)

type ViolationKind string

const (
	ViolationSelfParent    ViolationKind = "self_parent"
	ViolationMissingParent ViolationKind = "missing_parent"
	ViolationCycle         ViolationKind = "cycle"
	ViolationDepth         ViolationKind = "depth"
)

type Violation struct {
	NoteID string
	Kind   ViolationKind
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.NoteID, v.Kind, v.Detail)
}

// Check audits a full snapshot of the notes table and reports every note that
// breaks a tree invariant. Violations are ordered by note id.
func Check(notes []store.Note, maxDepth int) []Violation {
	parents := make(map[string]*string, len(notes))
	for _, note := range notes {
		parents[note.ID] = note.ParentID
	}

	var violations []Violation
	for _, note := range notes {
		if note.ParentID == nil {
			continue
		}
		parentID := *note.ParentID
		if parentID == note.ID {
			violations = append(violations, Violation{NoteID: note.ID, Kind: ViolationSelfParent, Detail: "parent_id equals id"})
			continue
		}
		if _, ok := parents[parentID]; !ok {
			violations = append(violations, Violation{NoteID: note.ID, Kind: ViolationMissingParent, Detail: "parent " + parentID + " does not exist"})
			continue
		}

		depth, cyclic := climb(parents, note.ID)
		switch {
		case cyclic:
			violations = append(violations, Violation{NoteID: note.ID, Kind: ViolationCycle, Detail: "ancestor chain loops"})
		case depth > maxDepth:
			violations = append(violations, Violation{NoteID: note.ID, Kind: ViolationDepth, Detail: fmt.Sprintf("depth %d exceeds %d", depth, maxDepth)})
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].NoteID < violations[j].NoteID
	})
	return violations
}

// climb follows parent links from id. It stops at a root or a missing parent
// and reports a revisit as a cycle.
func climb(parents map[string]*string, id string) (int, bool) {
	visited := map[string]struct{}{id: {}}
	depth := 0
	current := parents[id]
	for current != nil {
		if _, seen := visited[*current]; seen {
			return depth, true
		}
		next, ok := parents[*current]
		if !ok {
			break
		}
		visited[*current] = struct{}{}
		depth++
		current = next
	}
	return depth, false
}
