package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by repositories so services can map them onto the
// HTTP error taxonomy without inspecting driver errors.
var (
	// ErrHasDependents signals that a delete was refused because dependent
	// rows still reference the record.
	ErrHasDependents = errors.New("record has dependent rows")

	// ErrLinkConflict signals that a class is already linked to a different
	// owner. Returned both by the pre-check and by the transactional replace
	// when the per-row re-check (or the unique constraint) trips.
	ErrLinkConflict = errors.New("class already linked to another owner")

	// ErrDuplicate signals a unique-constraint violation on a natural key
	// (duplicate enrollment, duplicate email).
	ErrDuplicate = errors.New("duplicate record")
)

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
