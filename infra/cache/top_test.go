package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ttl time.Duration) (*TopCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), mr
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t, time.Minute)

	_, ok, err := c.Get(ctx, "mkt")
	require.NoError(t, err)
	assert.False(t, ok)

	in := Top{Market: "mkt", BestBid: 99, BestAsk: 101, Generation: 4, Slot: 12345, UpdatedAt: time.UnixMilli(1_700_000_000_000)}
	require.NoError(t, c.Put(ctx, in))

	got, ok, err := c.Get(ctx, "mkt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.BestBid, got.BestBid)
	assert.Equal(t, in.BestAsk, got.BestAsk)
	assert.Equal(t, in.Generation, got.Generation)
	assert.Equal(t, in.Slot, got.Slot)
	assert.True(t, in.UpdatedAt.Equal(got.UpdatedAt))

	assert.Equal(t, time.Minute, mr.TTL(Key("mkt")))

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "mkt")
	require.NoError(t, err)
	assert.False(t, ok)
}
