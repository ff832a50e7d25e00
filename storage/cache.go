package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"travelbuddy-api/domain"
)

type backend interface {
	domain.Store
	EnqueueEvent(ctx context.Context, userID string, ev domain.Event) error
}

// Cache wraps a Storage instance with Redis-backed caching for the list
// read path. Every mutation evicts the user's cached collection so the
// next list reflects server state.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis
// client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListChecklists(ctx context.Context, userID string) ([]domain.Checklist, error) {
	if lists, ok := c.loadFromCache(ctx, userID); ok {
		return lists, nil
	}
	lists, err := c.base.ListChecklists(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userID, lists)
	return lists, nil
}

func (c *Cache) GetChecklist(ctx context.Context, userID, id string) (*domain.Checklist, error) {
	return c.base.GetChecklist(ctx, userID, id)
}

func (c *Cache) CreateChecklist(ctx context.Context, userID string, cl domain.Checklist) (string, error) {
	id, err := c.base.CreateChecklist(ctx, userID, cl)
	if err != nil {
		return "", err
	}
	c.evict(ctx, userID)
	return id, nil
}

func (c *Cache) ReplaceChecklist(ctx context.Context, userID, id string, cl domain.Checklist) error {
	if err := c.base.ReplaceChecklist(ctx, userID, id, cl); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) DeleteChecklist(ctx context.Context, userID, id string) error {
	if err := c.base.DeleteChecklist(ctx, userID, id); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) DeleteChecklistsByTitle(ctx context.Context, userID, title string) (int, error) {
	n, err := c.base.DeleteChecklistsByTitle(ctx, userID, title)
	if err != nil {
		return n, err
	}
	c.evict(ctx, userID)
	return n, nil
}

func (c *Cache) AddCollaborator(ctx context.Context, userID, id, identity string) error {
	if err := c.base.AddCollaborator(ctx, userID, id, identity); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) RemoveCollaborator(ctx context.Context, userID, id, identity string) error {
	if err := c.base.RemoveCollaborator(ctx, userID, id, identity); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) EnqueueEvent(ctx context.Context, userID string, ev domain.Event) error {
	return c.base.EnqueueEvent(ctx, userID, ev)
}

func (c *Cache) loadFromCache(ctx context.Context, userID string) ([]domain.Checklist, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, checklistsCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, checklistsCacheKey(userID)).Err()
		}
		return nil, false
	}
	var lists []domain.Checklist
	if err := json.Unmarshal(data, &lists); err != nil {
		_ = c.redis.Del(ctx, checklistsCacheKey(userID)).Err()
		return nil, false
	}
	return lists, true
}

func (c *Cache) store(ctx context.Context, userID string, lists []domain.Checklist) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(lists)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, checklistsCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, checklistsCacheKey(userID)).Result()
}

func checklistsCacheKey(userID string) string {
	return "checklists:" + userID
}
