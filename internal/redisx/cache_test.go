package redisx

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client), mr
}

func TestCacheOrderRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	_, err := cache.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	body := []byte(`{"id":"o1","status":"PENDING"}`)
	require.NoError(t, cache.SetOrder(ctx, "o1", body))

	got, err := cache.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	ttl := mr.TTL(OrderKey("o1"))
	assert.Equal(t, TTLOrder, ttl)

	require.NoError(t, cache.InvalidateOrder(ctx, "o1"))
	_, err = cache.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheOrderExpires(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, cache.SetOrder(ctx, "o1", []byte(`{}`)))
	mr.FastForward(TTLOrder)

	_, err := cache.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheProductRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	body := []byte(`{"id":"p1","name":"Laptop"}`)
	require.NoError(t, cache.SetProduct(ctx, "p1", body))

	got, err := cache.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, TTLProduct, mr.TTL(ProductKey("p1")))

	require.NoError(t, cache.InvalidateProduct(ctx, "p1"))
	_, err = cache.GetProduct(ctx, "p1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheKeysAreDisjoint(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	require.NoError(t, cache.SetOrder(ctx, "same-id", []byte(`order`)))
	require.NoError(t, cache.SetProduct(ctx, "same-id", []byte(`product`)))

	o, err := cache.GetOrder(ctx, "same-id")
	require.NoError(t, err)
	p, err := cache.GetProduct(ctx, "same-id")
	require.NoError(t, err)
	assert.NotEqual(t, o, p)
}

func TestCacheSurfacesBackendErrors(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	mr.Close()
	_, err := cache.GetOrder(ctx, "o1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
