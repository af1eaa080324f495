package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"schedule-api/domain"
)

type backend interface {
	ListTasks(ctx context.Context, userID string) ([]domain.ScheduledItem, error)
	ListCustomers(ctx context.Context, userID string) ([]domain.Customer, error)
	CreateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error)
	UpdateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error)
	PatchTaskDate(ctx context.Context, userID, id, date string) error
	PatchTaskCompletion(ctx context.Context, userID, id string, completed bool) error
	DeleteTask(ctx context.Context, userID, id string) error
}

// Cache wraps a Storage instance with Redis-backed caching for read
// operations. Every write evicts the user's task cache so the next read
// observes the mutation.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) ListTasks(ctx context.Context, userID string) ([]domain.ScheduledItem, error) {
	if items, ok := c.loadTasksFromCache(ctx, userID); ok {
		return items, nil
	}

	items, err := c.base.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.storeTasks(ctx, userID, items)
	return items, nil
}

func (c *Cache) ListCustomers(ctx context.Context, userID string) ([]domain.Customer, error) {
	if customers, ok := c.loadCustomersFromCache(ctx, userID); ok {
		return customers, nil
	}

	customers, err := c.base.ListCustomers(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.storeCustomers(ctx, userID, customers)
	return customers, nil
}

func (c *Cache) CreateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error) {
	created, err := c.base.CreateTask(ctx, userID, item)
	if err != nil {
		return domain.ScheduledItem{}, err
	}
	c.evictTasks(ctx, userID)
	return created, nil
}

func (c *Cache) UpdateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error) {
	updated, err := c.base.UpdateTask(ctx, userID, item)
	if err != nil {
		return domain.ScheduledItem{}, err
	}
	c.evictTasks(ctx, userID)
	return updated, nil
}

func (c *Cache) PatchTaskDate(ctx context.Context, userID, id, date string) error {
	if err := c.base.PatchTaskDate(ctx, userID, id, date); err != nil {
		return err
	}
	c.evictTasks(ctx, userID)
	return nil
}

func (c *Cache) PatchTaskCompletion(ctx context.Context, userID, id string, completed bool) error {
	if err := c.base.PatchTaskCompletion(ctx, userID, id, completed); err != nil {
		return err
	}
	c.evictTasks(ctx, userID)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, userID, id string) error {
	if err := c.base.DeleteTask(ctx, userID, id); err != nil {
		return err
	}
	c.evictTasks(ctx, userID)
	return nil
}

func (c *Cache) loadTasksFromCache(ctx context.Context, userID string) ([]domain.ScheduledItem, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		}
		return nil, false
	}
	var items []domain.ScheduledItem
	if err := json.Unmarshal(data, &items); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		return nil, false
	}
	return items, true
}

func (c *Cache) loadCustomersFromCache(ctx context.Context, userID string) ([]domain.Customer, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, customersCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, customersCacheKey(userID)).Err()
		}
		return nil, false
	}
	var customers []domain.Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		_ = c.redis.Del(ctx, customersCacheKey(userID)).Err()
		return nil, false
	}
	return customers, true
}

func (c *Cache) storeTasks(ctx context.Context, userID string, items []domain.ScheduledItem) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) storeCustomers(ctx context.Context, userID string, customers []domain.Customer) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(customers)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, customersCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evictTasks(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(userID)).Result()
}

func tasksCacheKey(userID string) string {
	return "tasks:" + userID
}

func customersCacheKey(userID string) string {
	return "customers:" + userID
}
