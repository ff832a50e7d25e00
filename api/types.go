package api

import (
	"context"

	"travelbuddy-api/domain"
)

// Store abstracts persistence for handlers: the remote checklist
// collection plus the activity queue.
type Store interface {
	domain.Store
	EnqueueEvent(ctx context.Context, userID string, ev domain.Event) error
}

// Profile is the display identity extracted from the caller's token.
type Profile struct {
	UserID  string `json:"userId"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Authenticator is implemented by types able to resolve the caller's
// identity from the Authorization header.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
	ProfileFromAuthHeader(string) (Profile, error)
}

// Deduper suppresses replays of idempotent mutations.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the store rejects
	// the write so the caller may retry.
	Remove(ctx context.Context, userID, key string) error
}
