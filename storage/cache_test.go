package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"schedule-api/domain"
)

type stubBackend struct {
	listTasksFn           func(ctx context.Context, userID string) ([]domain.ScheduledItem, error)
	listCustomersFn       func(ctx context.Context, userID string) ([]domain.Customer, error)
	createTaskFn          func(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error)
	updateTaskFn          func(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error)
	patchTaskDateFn       func(ctx context.Context, userID, id, date string) error
	patchTaskCompletionFn func(ctx context.Context, userID, id string, completed bool) error
	deleteTaskFn          func(ctx context.Context, userID, id string) error
}

func (s *stubBackend) ListTasks(ctx context.Context, userID string) ([]domain.ScheduledItem, error) {
	if s.listTasksFn == nil {
		return nil, errors.New("unexpected ListTasks call")
	}
	return s.listTasksFn(ctx, userID)
}

func (s *stubBackend) ListCustomers(ctx context.Context, userID string) ([]domain.Customer, error) {
	if s.listCustomersFn == nil {
		return nil, errors.New("unexpected ListCustomers call")
	}
	return s.listCustomersFn(ctx, userID)
}

func (s *stubBackend) CreateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error) {
	if s.createTaskFn == nil {
		return domain.ScheduledItem{}, errors.New("unexpected CreateTask call")
	}
	return s.createTaskFn(ctx, userID, item)
}

func (s *stubBackend) UpdateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error) {
	if s.updateTaskFn == nil {
		return domain.ScheduledItem{}, errors.New("unexpected UpdateTask call")
	}
	return s.updateTaskFn(ctx, userID, item)
}

func (s *stubBackend) PatchTaskDate(ctx context.Context, userID, id, date string) error {
	if s.patchTaskDateFn == nil {
		return errors.New("unexpected PatchTaskDate call")
	}
	return s.patchTaskDateFn(ctx, userID, id, date)
}

func (s *stubBackend) PatchTaskCompletion(ctx context.Context, userID, id string, completed bool) error {
	if s.patchTaskCompletionFn == nil {
		return errors.New("unexpected PatchTaskCompletion call")
	}
	return s.patchTaskCompletionFn(ctx, userID, id, completed)
}

func (s *stubBackend) DeleteTask(ctx context.Context, userID, id string) error {
	if s.deleteTaskFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, userID, id)
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

func TestCacheListTasksMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-1"
	expected := []domain.ScheduledItem{{ID: "t1", Title: "Call Alice", Kind: domain.KindTask, Date: "2026-08-29"}}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context, uid string) ([]domain.ScheduledItem, error) {
			calls++
			if uid != userID {
				t.Fatalf("unexpected user id: %s", uid)
			}
			return append([]domain.ScheduledItem(nil), expected...), nil
		},
	}, client, time.Minute)

	items, err := cache.ListTasks(ctx, userID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !reflect.DeepEqual(items, expected) {
		t.Fatalf("unexpected items: %#v", items)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(tasksCacheKey(userID)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.ListTasks(ctx, userID)
	if err != nil {
		t.Fatalf("list cached tasks: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached items: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached list to avoid backend, calls=%d", calls)
	}
}

func TestCacheListTasksPreservesCompletedColumn(t *testing.T) {
	_, client := newTestRedis(t)

	ctx := context.Background()
	done := false
	source := []domain.ScheduledItem{{ID: "t1", Title: "Review", Kind: domain.KindTask, Date: "2026-09-01", Completed: &done}}

	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context, string) ([]domain.ScheduledItem, error) {
			return append([]domain.ScheduledItem(nil), source...), nil
		},
	}, client, time.Minute)

	if _, err := cache.ListTasks(ctx, "user"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	cached, err := cache.ListTasks(ctx, "user")
	if err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if !cached[0].HasCompletedField() {
		t.Fatal("cache round trip dropped the completed column")
	}
	if *cached[0].Completed {
		t.Fatal("cache round trip flipped the completed value")
	}
}

func TestCacheListCustomersMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "user-customers"
	expected := []domain.Customer{{ID: "c1", Name: "Alice Tan", DateOfBirth: "1990-03-05"}}

	var calls int
	cache := NewCache(&stubBackend{
		listCustomersFn: func(ctx context.Context, uid string) ([]domain.Customer, error) {
			calls++
			return append([]domain.Customer(nil), expected...), nil
		},
	}, client, time.Minute)

	customers, err := cache.ListCustomers(ctx, userID)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if !reflect.DeepEqual(customers, expected) {
		t.Fatalf("unexpected customers: %#v", customers)
	}
	if ttl := mr.TTL(customersCacheKey(userID)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.ListCustomers(ctx, userID)
	if err != nil {
		t.Fatalf("list cached customers: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached customers: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached list to avoid backend, calls=%d", calls)
	}
}

func TestCacheMutationsEvictTaskCache(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "evict-user"

	seed := func() {
		if err := client.Set(ctx, tasksCacheKey(userID), []byte("[]"), time.Hour).Err(); err != nil {
			t.Fatalf("seed tasks cache: %v", err)
		}
	}

	cache := NewCache(&stubBackend{
		createTaskFn: func(_ context.Context, _ string, item domain.ScheduledItem) (domain.ScheduledItem, error) {
			item.ID = "new"
			return item, nil
		},
		updateTaskFn: func(_ context.Context, _ string, item domain.ScheduledItem) (domain.ScheduledItem, error) {
			return item, nil
		},
		patchTaskDateFn:       func(context.Context, string, string, string) error { return nil },
		patchTaskCompletionFn: func(context.Context, string, string, bool) error { return nil },
		deleteTaskFn:          func(context.Context, string, string) error { return nil },
	}, client, time.Minute)

	mutations := map[string]func() error{
		"create": func() error {
			_, err := cache.CreateTask(ctx, userID, domain.ScheduledItem{Title: "x", Kind: domain.KindTask, Date: "2026-09-01"})
			return err
		},
		"update": func() error {
			_, err := cache.UpdateTask(ctx, userID, domain.ScheduledItem{ID: "t1", Title: "x", Kind: domain.KindTask, Date: "2026-09-01"})
			return err
		},
		"patch-date":       func() error { return cache.PatchTaskDate(ctx, userID, "t1", "2026-09-02") },
		"patch-completion": func() error { return cache.PatchTaskCompletion(ctx, userID, "t1", true) },
		"delete":           func() error { return cache.DeleteTask(ctx, userID, "t1") },
	}

	for name, mutate := range mutations {
		seed()
		if err := mutate(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if mr.Exists(tasksCacheKey(userID)) {
			t.Fatalf("%s: tasks cache key should be evicted", name)
		}
	}
}

func TestCacheMutationErrorPreservesCache(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "evict-error"
	if err := client.Set(ctx, tasksCacheKey(userID), []byte("[]"), time.Hour).Err(); err != nil {
		t.Fatalf("seed tasks cache: %v", err)
	}

	cache := NewCache(&stubBackend{
		patchTaskDateFn: func(context.Context, string, string, string) error {
			return errors.New("boom")
		},
	}, client, time.Minute)

	if err := cache.PatchTaskDate(ctx, userID, "t1", "2026-09-02"); err == nil {
		t.Fatal("expected patch error")
	}
	if !mr.Exists(tasksCacheKey(userID)) {
		t.Fatal("tasks cache should remain on error")
	}
}

func TestCacheCorruptEntryFallsBackToBackend(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	userID := "corrupt-user"
	if err := client.Set(ctx, tasksCacheKey(userID), []byte("{not json"), time.Hour).Err(); err != nil {
		t.Fatalf("seed corrupt cache: %v", err)
	}

	expected := []domain.ScheduledItem{{ID: "t1", Title: "recovered", Kind: domain.KindTask, Date: "2026-09-01"}}
	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context, string) ([]domain.ScheduledItem, error) {
			return append([]domain.ScheduledItem(nil), expected...), nil
		},
	}, client, time.Minute)

	items, err := cache.ListTasks(ctx, userID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !reflect.DeepEqual(items, expected) {
		t.Fatalf("unexpected items: %#v", items)
	}
	if !mr.Exists(tasksCacheKey(userID)) {
		t.Fatal("expected fresh data to be cached after corrupt entry")
	}
}

func TestCacheNilRedisDelegatesEveryCall(t *testing.T) {
	ctx := context.Background()
	expected := []domain.ScheduledItem{{ID: "t1", Title: "direct", Kind: domain.KindTask, Date: "2026-09-01"}}

	var calls int
	cache := NewCache(&stubBackend{
		listTasksFn: func(context.Context, string) ([]domain.ScheduledItem, error) {
			calls++
			return append([]domain.ScheduledItem(nil), expected...), nil
		},
	}, nil, time.Minute)

	for i := 0; i < 2; i++ {
		items, err := cache.ListTasks(ctx, "user")
		if err != nil {
			t.Fatalf("list tasks: %v", err)
		}
		if !reflect.DeepEqual(items, expected) {
			t.Fatalf("unexpected items: %#v", items)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every call to hit the backend without redis, calls=%d", calls)
	}
}
