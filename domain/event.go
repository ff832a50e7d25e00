package domain

import "github.com/bytedance/sonic"

// Activity event types recorded on the audit queue.
const (
	EventChecklistCreated    = "checklist-created"
	EventChecklistSaved      = "checklist-saved"
	EventChecklistDeleted    = "checklist-deleted"
	EventCollaboratorAdded   = "collaborator-added"
	EventCollaboratorRemoved = "collaborator-removed"
	EventUserSignedOut       = "user-signed-out"
)

// Event is a single activity-feed entry. Publication is best effort:
// losing an event never fails the user operation that produced it.
type Event struct {
	ID        string                 `json:"id,omitempty"`
	EntityID  string                 `json:"entityId,omitempty"`
	Type      string                 `json:"type"`
	Data      sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// EventEnvelope wraps an event with the user that produced it.
type EventEnvelope struct {
	UserID string `json:"userId"`
	Event  Event  `json:"event"`
}
