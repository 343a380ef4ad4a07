package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/finwise-app/finwise/internal/platform/cache"
)

func newRedisCache(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedis(client), mr
}

func TestRedisSetGet(t *testing.T) {
	store, _ := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", map[string]int{"n": 7}, time.Minute))

	var got map[string]int
	ok, err := store.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, got["n"])
}

func TestRedisMissAfterExpiry(t *testing.T) {
	store, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var got string
	ok, err := store.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisMissOnUnknownKey(t *testing.T) {
	store, _ := newRedisCache(t)

	var got string
	ok, err := store.Get(context.Background(), "absent", &got)
	require.NoError(t, err)
	require.False(t, ok)
}
