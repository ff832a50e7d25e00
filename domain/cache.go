package domain

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Cache mirrors one user's checklists in memory and serves
// category-partitioned reads. Load replaces the whole set from the
// store; mutations commit remotely before the mirror changes, with the
// single documented exception of Delete, which removes the entity
// locally even when the remote delete fails.
type Cache struct {
	store  Store
	userID string

	mu       sync.Mutex
	lists    []Checklist
	revision Revision
}

// NewCache builds a cache bound to one authenticated user. There is no
// process-wide cache: every consumer constructs its own.
func NewCache(store Store, userID string) (*Cache, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return &Cache{store: store, userID: userID}, nil
}

// Load fetches the user's full collection and replaces the in-memory
// set. On failure the previous set is retained, stale but available.
// Concurrent loads are serialized; the last one to run wins.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	lists, err := c.store.ListChecklists(ctx, c.userID)
	if err != nil {
		return storeErr(err)
	}
	for i := range lists {
		lists[i].Normalize()
	}
	c.lists = lists
	c.revision = nextRevision()
	return nil
}

// Refresh reloads the cache when the caller holds a freshness token
// newer than the last load. A zero token always reloads.
func (c *Cache) Refresh(ctx context.Context, rev Revision) error {
	if rev != 0 && rev <= c.Revision() {
		return nil
	}
	return c.Load(ctx)
}

// Revision reports the token stamped by the most recent load or local
// mutation.
func (c *Cache) Revision() Revision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

// ByCategory returns a lazy, restartable sequence over the cached
// checklists of one category, preserving insertion order. Every restart
// observes the cache state at that moment.
func (c *Cache) ByCategory(cat Category) iter.Seq[Checklist] {
	return func(yield func(Checklist) bool) {
		for _, cl := range c.snapshot() {
			if cl.Category != cat {
				continue
			}
			if !yield(cl) {
				return
			}
		}
	}
}

// All returns a copy of every cached checklist in insertion order.
func (c *Cache) All() []Checklist { return c.snapshot() }

// Get returns a copy of the cached checklist with the given id.
func (c *Cache) Get(id string) (Checklist, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lists {
		if c.lists[i].ID == id {
			return c.lists[i].Clone(), true
		}
	}
	return Checklist{}, false
}

// Len reports how many checklists the cache currently holds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lists)
}

// Create persists a fresh checklist, appends it to the mirror and
// returns the stored entity. The mirror is untouched when the store
// rejects the write, so a failed create leaves no orphan local entity.
func (c *Cache) Create(ctx context.Context, title string, cat Category) (Checklist, Revision, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	if !cat.Valid() {
		return Checklist{}, 0, fmt.Errorf("%w: unknown category %q", ErrInvalidChecklist, string(cat))
	}
	cl := Checklist{Title: title, Category: cat}
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.store.CreateChecklist(ctx, c.userID, cl)
	if err != nil {
		return Checklist{}, 0, storeErr(err)
	}
	cl.ID = id
	c.lists = append(c.lists, cl)
	c.revision = nextRevision()
	return cl.Clone(), c.revision, nil
}

// Delete removes the remote document and then the cached entity. The
// local removal happens even when the remote delete fails: delete is
// best effort remote, authoritative local. The error, if any, still
// surfaces so the caller can report the durability gap.
func (c *Cache) Delete(ctx context.Context, id string) (Revision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := -1
	for i := range c.lists {
		if c.lists[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, ErrNotFound
	}
	err := c.store.DeleteChecklist(ctx, c.userID, id)
	c.lists = append(c.lists[:idx], c.lists[idx+1:]...)
	c.revision = nextRevision()
	if err != nil {
		log.WithFields(log.Fields{"user": c.userID, "checklist": id}).Warn("remote delete failed, entity removed locally")
		return c.revision, storeErr(err)
	}
	return c.revision, nil
}

func (c *Cache) snapshot() []Checklist {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Checklist, len(c.lists))
	for i := range c.lists {
		out[i] = c.lists[i].Clone()
	}
	return out
}
