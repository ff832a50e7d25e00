package domain

import (
	"context"
	"strings"
)

type sessionState int

const (
	stateViewing sessionState = iota
	stateEditingTitle
	stateEditingItem
)

// EditSession stages edits to a single checklist. It works on a deep
// copy of the cache entity; nothing reaches the store until Save
// commits the whole working copy and hands back a freshness token.
// Callers invoke session methods sequentially; the session has no
// internal queue or lock.
type EditSession struct {
	store  Store
	userID string

	state     sessionState
	itemIndex int

	working Checklist
	onSaved func(Revision)
}

// NewEditSession seeds a session from an existing entity, usually one
// read out of the cache.
func NewEditSession(store Store, userID string, base Checklist) *EditSession {
	return &EditSession{store: store, userID: userID, working: base.Clone()}
}

// NewDraftSession opens a session on a fresh unpersisted checklist with
// the placeholder title. Save assigns the id on first commit.
func NewDraftSession(store Store, userID string, category Category) *EditSession {
	return &EditSession{store: store, userID: userID, working: NewChecklist(category)}
}

// OnSaved registers a completion callback invoked after every
// successful Save, before control returns to the caller. The view layer
// hangs its return-to-previous-screen transition here.
func (s *EditSession) OnSaved(fn func(Revision)) { s.onSaved = fn }

// Checklist returns a copy of the current working copy.
func (s *EditSession) Checklist() Checklist { return s.working.Clone() }

// BeginTitleEdit opens the title edit surface. It reports whether the
// session was in a state that allows it.
func (s *EditSession) BeginTitleEdit() bool {
	if s.state != stateViewing {
		return false
	}
	s.state = stateEditingTitle
	return true
}

// ConfirmTitle stages the new title and returns to viewing. No remote
// call happens here: title changes only commit on Save. Blank input
// keeps the previous title.
func (s *EditSession) ConfirmTitle(title string) {
	if s.state != stateEditingTitle {
		return
	}
	if strings.TrimSpace(title) != "" {
		s.working.Title = title
	}
	s.state = stateViewing
}

// CancelTitleEdit abandons the title edit surface.
func (s *EditSession) CancelTitleEdit() {
	if s.state == stateEditingTitle {
		s.state = stateViewing
	}
}

// SelectItem opens the item edit surface for a currently valid index.
func (s *EditSession) SelectItem(index int) bool {
	if s.state != stateViewing || index < 0 || index >= len(s.working.Items) {
		return false
	}
	s.state = stateEditingItem
	s.itemIndex = index
	return true
}

// UpdateText replaces the selected item's text and returns to viewing.
// A selection the working copy has since outgrown is a no-op, never an
// out-of-range failure, and blank input is silently skipped.
func (s *EditSession) UpdateText(text string) {
	if s.state != stateEditingItem {
		return
	}
	s.state = stateViewing
	if s.itemIndex >= len(s.working.Items) {
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	s.working.Items[s.itemIndex].Text = text
}

// DeleteItem removes the selected item, shifting later items down by
// one, and returns to viewing. A stale selection is a no-op.
func (s *EditSession) DeleteItem() {
	if s.state != stateEditingItem {
		return
	}
	s.state = stateViewing
	if s.itemIndex >= len(s.working.Items) {
		return
	}
	s.working.Items = append(s.working.Items[:s.itemIndex], s.working.Items[s.itemIndex+1:]...)
}

// AddItem appends a new line with an unchecked checkbox. Items never
// start without a checkbox; CheckNone only arises from documents loaded
// with a null state. Empty or whitespace-only input is silently skipped.
func (s *EditSession) AddItem(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.working.Items = append(s.working.Items, Item{Text: text, Checked: CheckOff})
}

// Toggle flips the checkbox at index. Out-of-range indices and lines
// without a checkbox are left alone.
func (s *EditSession) Toggle(index int) {
	if index < 0 || index >= len(s.working.Items) {
		return
	}
	s.working.Items[index].Toggle()
}

// Save commits the whole working copy, title, items, category and
// collaborator set, as one wholesale replace. A draft without an id is
// created instead and adopts the store-assigned id. The working copy
// survives a failed save so the caller can retry without re-entering
// anything.
func (s *EditSession) Save(ctx context.Context) (Revision, error) {
	if s.state != stateViewing {
		return 0, ErrEditInProgress
	}
	s.working.Normalize()
	if err := s.working.Validate(); err != nil {
		return 0, err
	}
	if s.working.ID == "" {
		id, err := s.store.CreateChecklist(ctx, s.userID, s.working)
		if err != nil {
			return 0, storeErr(err)
		}
		s.working.ID = id
	} else if err := s.store.ReplaceChecklist(ctx, s.userID, s.working.ID, s.working); err != nil {
		return 0, storeErr(err)
	}
	rev := nextRevision()
	if s.onSaved != nil {
		s.onSaved(rev)
	}
	return rev, nil
}

// Collaborators returns the manager for this session's collaborator
// set. It is only operable while the working copy is shared.
func (s *EditSession) Collaborators() *Collaborators {
	return &Collaborators{session: s}
}
