package redisx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is a thin JSON byte cache for API read paths. Every error other
// than a miss is surfaced; callers treat the cache as best-effort and
// decide whether to ignore it.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) GetOrder(ctx context.Context, orderID string) ([]byte, error) {
	return c.get(ctx, OrderKey(orderID))
}

func (c *Cache) SetOrder(ctx context.Context, orderID string, body []byte) error {
	return c.client.Set(ctx, OrderKey(orderID), body, TTLOrder).Err()
}

func (c *Cache) InvalidateOrder(ctx context.Context, orderID string) error {
	return c.client.Del(ctx, OrderKey(orderID)).Err()
}

func (c *Cache) GetProduct(ctx context.Context, productID string) ([]byte, error) {
	return c.get(ctx, ProductKey(productID))
}

func (c *Cache) SetProduct(ctx context.Context, productID string, body []byte) error {
	return c.client.Set(ctx, ProductKey(productID), body, TTLProduct).Err()
}

func (c *Cache) InvalidateProduct(ctx context.Context, productID string) error {
	return c.client.Del(ctx, ProductKey(productID)).Err()
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
