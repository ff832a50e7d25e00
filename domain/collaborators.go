package domain

import (
	"context"
	"strings"
)

// Collaborators manages the collaborator set of an open shared
// checklist. Unlike title and item edits, mutations here go remote
// first and the working copy is reloaded from the store afterwards:
// sharing state must be visible to the other side immediately,
// independent of whether the editor later saves or discards its other
// staged edits.
type Collaborators struct {
	session *EditSession
}

// List returns the working copy's collaborator identities in the order
// the server returned them.
func (m *Collaborators) List() []string {
	return append([]string(nil), m.session.working.Collaborators...)
}

// Add unions the identity into the remote collaborator set. Adding an
// already present identity changes nothing.
func (m *Collaborators) Add(ctx context.Context, identity string) (Revision, error) {
	return m.mutate(ctx, identity, m.session.store.AddCollaborator)
}

// Remove drops the identity from the remote set, a no-op when absent.
func (m *Collaborators) Remove(ctx context.Context, identity string) (Revision, error) {
	return m.mutate(ctx, identity, m.session.store.RemoveCollaborator)
}

func (m *Collaborators) mutate(ctx context.Context, identity string, op func(context.Context, string, string, string) error) (Revision, error) {
	s := m.session
	if !s.working.Shared() {
		return 0, ErrNotShared
	}
	if s.working.ID == "" {
		return 0, ErrNotFound
	}
	if strings.TrimSpace(identity) == "" {
		return 0, nil
	}
	if err := op(ctx, s.userID, s.working.ID, identity); err != nil {
		// The working copy keeps its last successfully loaded value.
		return 0, storeErr(err)
	}
	cur, err := s.store.GetChecklist(ctx, s.userID, s.working.ID)
	if err != nil {
		return 0, storeErr(err)
	}
	if cur != nil {
		s.working.Collaborators = append([]string(nil), cur.Collaborators...)
	}
	return nextRevision(), nil
}
