package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps any transport or server failure reported
	// by the remote checklist store. Callers retry by reissuing the
	// operation; the engine never retries on its own.
	ErrStoreUnavailable = errors.New("checklist store unavailable")

	// ErrNotAuthenticated is returned when an operation that needs a
	// current user id is invoked without one.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotFound is returned when an id-addressed document is absent.
	ErrNotFound = errors.New("checklist not found")

	// ErrNotShared rejects collaborator mutations on a personal checklist.
	ErrNotShared = errors.New("checklist is not shared")

	// ErrInvalidChecklist rejects entities violating a model invariant.
	ErrInvalidChecklist = errors.New("invalid checklist")

	// ErrEditInProgress is returned when Save is called while a title or
	// item edit surface is still open.
	ErrEditInProgress = errors.New("edit in progress")
)

// storeErr folds an arbitrary store failure into the error taxonomy.
// Sentinels already in the taxonomy pass through untouched so errors.Is
// keeps working across the storage boundary.
func storeErr(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
