package domain

import (
	"fmt"
	"strings"
)

// Category partitions checklists for display and decides whether
// collaborators apply. The wire name is "type" with the values the
// mobile client has always sent.
type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryShared   Category = "shared"
)

// Valid reports whether the category is one of the two known values.
func (c Category) Valid() bool {
	return c == CategoryPersonal || c == CategoryShared
}

// DefaultTitle is the placeholder title of a freshly created checklist.
const DefaultTitle = "Untitled"

// Checklist is a titled, categorized, ordered collection of items,
// optionally shared with collaborators. ID is assigned by the store on
// first create and is empty while the entity is unpersisted.
type Checklist struct {
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title"`
	Category      Category `json:"type"`
	Items         []Item   `json:"items"`
	Collaborators []string `json:"sharedWith,omitempty"`
}

// NewChecklist returns an unpersisted checklist with the placeholder
// title, no items and no collaborators.
func NewChecklist(category Category) Checklist {
	return Checklist{Title: DefaultTitle, Category: category}
}

// Shared reports whether the checklist belongs to the shared category.
func (c *Checklist) Shared() bool { return c.Category == CategoryShared }

// Clone returns a deep copy so callers can stage edits without touching
// the original.
func (c *Checklist) Clone() Checklist {
	out := *c
	if c.Items != nil {
		out.Items = append([]Item(nil), c.Items...)
	}
	if c.Collaborators != nil {
		out.Collaborators = append([]string(nil), c.Collaborators...)
	}
	return out
}

// Normalize enforces the category invariant: only shared checklists
// carry collaborators.
func (c *Checklist) Normalize() {
	if !c.Shared() {
		c.Collaborators = nil
	}
}

// Validate rejects entities that must never reach the store.
func (c *Checklist) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidChecklist)
	}
	if !c.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidChecklist, string(c.Category))
	}
	return nil
}
