package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("document not found")

// ValidationError reports malformed input to a merge or plan call, such as
// a field override referencing a field present on neither record.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("validation failed: %s", e.Msg)
}

// ReferenceIntegrityError guards deletes: a record still referenced in the
// active scope must never be removed. Always fatal to the specific delete.
type ReferenceIntegrityError struct {
	Collection string
	ID         string
	RefCount   int
}

func (e *ReferenceIntegrityError) Error() string {
	return fmt.Sprintf("refusing to delete %s/%s: still referenced by %d record(s)",
		e.Collection, e.ID, e.RefCount)
}

// RepositoryError wraps an I/O failure surfaced from the document store.
type RepositoryError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *RepositoryError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("repository %s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
	}
	return fmt.Sprintf("repository %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// DependencyBlockedError marks a plan change that could not apply because
// an ancestor change failed or was deselected. The change is skipped, never
// applied in a dangling state.
type DependencyBlockedError struct {
	ChangeID  string
	BlockedOn string
}

func (e *DependencyBlockedError) Error() string {
	return fmt.Sprintf("change %s blocked: dependency %s did not apply", e.ChangeID, e.BlockedOn)
}
