package domain

import (
	"context"
	"sync/atomic"
	"time"
)

// Store is the remote per-user checklist collection the engine syncs
// against. It is the source of truth: the in-memory cache only mirrors
// it. Implementations live in the storage package; tests use fakes.
type Store interface {
	// ListChecklists returns every checklist in the user's collection.
	ListChecklists(ctx context.Context, userID string) ([]Checklist, error)
	// GetChecklist returns the checklist with the given id, or nil when
	// no such document exists.
	GetChecklist(ctx context.Context, userID, id string) (*Checklist, error)
	// CreateChecklist persists a new document and returns its
	// store-assigned id.
	CreateChecklist(ctx context.Context, userID string, c Checklist) (string, error)
	// ReplaceChecklist writes the whole entity over the document with
	// the given id, creating it when absent.
	ReplaceChecklist(ctx context.Context, userID, id string, c Checklist) error
	// DeleteChecklist removes the document with the given id. Deleting
	// an already absent document is not an error.
	DeleteChecklist(ctx context.Context, userID, id string) error
	// DeleteChecklistsByTitle removes every document whose title matches
	// and reports how many were affected. This is the legacy title-keyed
	// path: two same-titled checklists are both removed.
	DeleteChecklistsByTitle(ctx context.Context, userID, title string) (int, error)
	// AddCollaborator unions the identity into the document's
	// collaborator set. Adding a present identity changes nothing.
	AddCollaborator(ctx context.Context, userID, id, identity string) error
	// RemoveCollaborator drops the identity from the set, a no-op when
	// absent.
	RemoveCollaborator(ctx context.Context, userID, id, identity string) error
}

// Revision is a monotonic freshness token handed out by mutations.
// Callers pass the newest token they hold to Cache.Refresh, which skips
// the reload when the cache is already at least that fresh.
type Revision int64

var lastRevision int64

func nextRevision() Revision {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastRevision)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastRevision, last, now) {
			return Revision(now)
		}
	}
}
