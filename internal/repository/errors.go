package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by repositories; services translate them into the
// domain error taxonomy.
var (
	// ErrDuplicate is returned when an insert loses the uniqueness arbiter
	// (e.g. a second submission of the same (student, checksum) pair).
	ErrDuplicate = errors.New("duplicate row")

	// ErrStaleTransition is returned when a guarded status update matched
	// zero rows because the submission is no longer in the expected state.
	// Stage consumers treat it as an idempotent skip.
	ErrStaleTransition = errors.New("submission not in expected status")

	// ErrAlreadyReviewed is returned when a review decision targets an
	// activity that already carries a terminal review status.
	ErrAlreadyReviewed = errors.New("activity already reviewed")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
