package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheStore_RoundTripAndExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCacheStore(client, 5*time.Second)
	ctx := context.Background()

	miss, err := store.GetOccupancy(ctx, "trip-1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, store.SetOccupancy(ctx, &CachedOccupancy{TripID: "trip-1", Percent: 25, Used: 10, Capacity: 40}))
	assert.True(t, mr.Exists("cache:occupancy:trip-1"))

	hit, err := store.GetOccupancy(ctx, "trip-1")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, 10, hit.Used)
	assert.Equal(t, 40, hit.Capacity)

	mr.FastForward(6 * time.Second)
	expired, err := store.GetOccupancy(ctx, "trip-1")
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestCacheStore_InvalidateTrips(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCacheStore(client, 0)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SetOccupancy(ctx, &CachedOccupancy{TripID: id, Capacity: 10}))
	}

	require.NoError(t, store.InvalidateTrips(ctx, "a", "b"))
	require.NoError(t, store.InvalidateTrips(ctx))

	assert.False(t, mr.Exists("cache:occupancy:a"))
	assert.False(t, mr.Exists("cache:occupancy:b"))
	assert.True(t, mr.Exists("cache:occupancy:c"))
	assert.Equal(t, DefaultOccupancyTTL, mr.TTL("cache:occupancy:c"))
}

func TestCacheStore_CorruptEntry(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCacheStore(client, time.Second)

	require.NoError(t, mr.Set("cache:occupancy:bad", "{not json"))

	_, err := store.GetOccupancy(context.Background(), "bad")
	assert.Error(t, err)
}

func TestLockStore_AcquireAndRelease(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewLockStore(client)
	ctx := context.Background()

	token, err := store.AcquireNegotiationLock(ctx, "neg-1", 10*time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	second, err := store.AcquireNegotiationLock(ctx, "neg-1", 10*time.Second)
	require.NoError(t, err)
	assert.Empty(t, second, "lock must not be granted twice")

	// A stale token cannot release somebody else's lock.
	require.NoError(t, store.ReleaseNegotiationLock(ctx, "neg-1", "other-token"))
	assert.True(t, mr.Exists("lock:negotiation:neg-1"))

	require.NoError(t, store.ReleaseNegotiationLock(ctx, "neg-1", token))
	assert.False(t, mr.Exists("lock:negotiation:neg-1"))

	again, err := store.AcquireNegotiationLock(ctx, "neg-1", 10*time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, again)
}

func TestLockStore_ExpiresAfterTTL(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewLockStore(client)
	ctx := context.Background()

	_, err := store.AcquireNegotiationLock(ctx, "neg-2", 2*time.Second)
	require.NoError(t, err)

	mr.FastForward(3 * time.Second)

	token, err := store.AcquireNegotiationLock(ctx, "neg-2", 2*time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestStores_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	_, err := NewCacheStore(client, time.Second).GetOccupancy(ctx, "trip")
	assert.Error(t, err)

	_, err = NewLockStore(client).AcquireNegotiationLock(ctx, "neg", time.Second)
	assert.Error(t, err)
}
