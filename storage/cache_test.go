package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"travelbuddy-api/domain"
)

type stubBackend struct {
	listFn    func(ctx context.Context, userID string) ([]domain.Checklist, error)
	createFn  func(ctx context.Context, userID string, c domain.Checklist) (string, error)
	replaceFn func(ctx context.Context, userID, id string, c domain.Checklist) error
	deleteFn  func(ctx context.Context, userID, id string) error
	collabFn  func(ctx context.Context, userID, id, identity string) error
}

func (s *stubBackend) ListChecklists(ctx context.Context, userID string) ([]domain.Checklist, error) {
	if s.listFn == nil {
		return nil, errors.New("unexpected ListChecklists call")
	}
	return s.listFn(ctx, userID)
}

func (s *stubBackend) GetChecklist(ctx context.Context, userID, id string) (*domain.Checklist, error) {
	return nil, nil
}

func (s *stubBackend) CreateChecklist(ctx context.Context, userID string, c domain.Checklist) (string, error) {
	if s.createFn == nil {
		return "", errors.New("unexpected CreateChecklist call")
	}
	return s.createFn(ctx, userID, c)
}

func (s *stubBackend) ReplaceChecklist(ctx context.Context, userID, id string, c domain.Checklist) error {
	if s.replaceFn == nil {
		return errors.New("unexpected ReplaceChecklist call")
	}
	return s.replaceFn(ctx, userID, id, c)
}

func (s *stubBackend) DeleteChecklist(ctx context.Context, userID, id string) error {
	if s.deleteFn == nil {
		return errors.New("unexpected DeleteChecklist call")
	}
	return s.deleteFn(ctx, userID, id)
}

func (s *stubBackend) DeleteChecklistsByTitle(ctx context.Context, userID, title string) (int, error) {
	return 0, nil
}

func (s *stubBackend) AddCollaborator(ctx context.Context, userID, id, identity string) error {
	if s.collabFn == nil {
		return errors.New("unexpected AddCollaborator call")
	}
	return s.collabFn(ctx, userID, id, identity)
}

func (s *stubBackend) RemoveCollaborator(ctx context.Context, userID, id, identity string) error {
	if s.collabFn == nil {
		return errors.New("unexpected RemoveCollaborator call")
	}
	return s.collabFn(ctx, userID, id, identity)
}

func (s *stubBackend) EnqueueEvent(ctx context.Context, userID string, ev domain.Event) error {
	return nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheListMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	expected := []domain.Checklist{{ID: "c1", Title: "Packing", Category: domain.CategoryPersonal}}

	var calls int
	cache := NewCache(&stubBackend{
		listFn: func(ctx context.Context, uid string) ([]domain.Checklist, error) {
			calls++
			if uid != userID {
				t.Fatalf("unexpected user id: %s", uid)
			}
			return append([]domain.Checklist(nil), expected...), nil
		},
	}, client, time.Minute)

	lists, err := cache.ListChecklists(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(lists, expected) {
		t.Fatalf("unexpected lists: %#v", lists)
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}
	if ttl := mr.TTL(checklistsCacheKey(userID)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.ListChecklists(ctx, userID)
	if err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached lists: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached read to avoid backend, calls=%d", calls)
	}
}

func TestCacheMutationsEvict(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	var calls int
	cache := NewCache(&stubBackend{
		listFn: func(ctx context.Context, uid string) ([]domain.Checklist, error) {
			calls++
			return []domain.Checklist{}, nil
		},
		createFn: func(ctx context.Context, uid string, c domain.Checklist) (string, error) {
			return "new-id", nil
		},
		replaceFn: func(ctx context.Context, uid, id string, c domain.Checklist) error { return nil },
		deleteFn:  func(ctx context.Context, uid, id string) error { return nil },
		collabFn:  func(ctx context.Context, uid, id, identity string) error { return nil },
	}, client, time.Minute)

	mutations := []struct {
		name string
		run  func() error
	}{
		{name: "create", run: func() error {
			_, err := cache.CreateChecklist(ctx, userID, domain.Checklist{Title: "Trip", Category: domain.CategoryPersonal})
			return err
		}},
		{name: "replace", run: func() error {
			return cache.ReplaceChecklist(ctx, userID, "c1", domain.Checklist{Title: "Trip", Category: domain.CategoryPersonal})
		}},
		{name: "delete", run: func() error { return cache.DeleteChecklist(ctx, userID, "c1") }},
		{name: "add collaborator", run: func() error { return cache.AddCollaborator(ctx, userID, "c1", "a@x.com") }},
		{name: "remove collaborator", run: func() error { return cache.RemoveCollaborator(ctx, userID, "c1", "a@x.com") }},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			if _, err := cache.ListChecklists(ctx, userID); err != nil {
				t.Fatalf("prime cache: %v", err)
			}
			if !mr.Exists(checklistsCacheKey(userID)) {
				t.Fatal("cache not primed")
			}
			if err := m.run(); err != nil {
				t.Fatalf("mutation: %v", err)
			}
			if mr.Exists(checklistsCacheKey(userID)) {
				t.Fatal("mutation did not evict cached collection")
			}
		})
	}
}

func TestCacheFailedMutationKeepsEntry(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	cache := NewCache(&stubBackend{
		listFn: func(ctx context.Context, uid string) ([]domain.Checklist, error) {
			return []domain.Checklist{}, nil
		},
		deleteFn: func(ctx context.Context, uid, id string) error { return errors.New("storage down") },
	}, client, time.Minute)

	if _, err := cache.ListChecklists(ctx, userID); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := cache.DeleteChecklist(ctx, userID, "c1"); err == nil {
		t.Fatal("expected delete error")
	}
	if !mr.Exists(checklistsCacheKey(userID)) {
		t.Fatal("failed mutation evicted cache")
	}
}

func TestCacheNilRedisFallsThrough(t *testing.T) {
	ctx := context.Background()
	var calls int
	cache := NewCache(&stubBackend{
		listFn: func(ctx context.Context, uid string) ([]domain.Checklist, error) {
			calls++
			return []domain.Checklist{}, nil
		},
	}, nil, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.ListChecklists(ctx, "user-1"); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every read to hit the backend, calls=%d", calls)
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	if err := mr.Set(checklistsCacheKey(userID), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var calls int
	cache := NewCache(&stubBackend{
		listFn: func(ctx context.Context, uid string) ([]domain.Checklist, error) {
			calls++
			return []domain.Checklist{{ID: "c1", Title: "Trip", Category: domain.CategoryShared}}, nil
		},
	}, client, time.Minute)

	lists, err := cache.ListChecklists(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if calls != 1 || len(lists) != 1 {
		t.Fatalf("corrupt entry not bypassed: calls=%d lists=%v", calls, lists)
	}
}
