// Package cache mirrors the top of book into Redis for readers that do
// not speak gRPC.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Top is the cached best prices of one market.
type Top struct {
	Market     string
	BestBid    uint64
	BestAsk    uint64
	Generation uint64
	Slot       uint64
	UpdatedAt  time.Time
}

type TopCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *TopCache {
	return &TopCache{client: client, ttl: ttl}
}

// Key is the hash holding market's top of book.
func Key(market string) string {
	return "gigadex:top:" + market
}

// Put overwrites the cached top of book and refreshes its expiry.
func (c *TopCache) Put(ctx context.Context, t Top) error {
	key := Key(t.Market)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]interface{}{
			"best_bid":   t.BestBid,
			"best_ask":   t.BestAsk,
			"generation": t.Generation,
			"slot":       t.Slot,
			"updated_ms": t.UpdatedAt.UnixMilli(),
		})
		if c.ttl > 0 {
			p.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache top of %s: %w", t.Market, err)
	}
	return nil
}

// Get returns the cached top of book. ok is false when nothing is cached.
func (c *TopCache) Get(ctx context.Context, market string) (t Top, ok bool, err error) {
	fields, err := c.client.HGetAll(ctx, Key(market)).Result()
	if err != nil {
		return Top{}, false, err
	}
	if len(fields) == 0 {
		return Top{}, false, nil
	}

	t.Market = market
	for name, dst := range map[string]*uint64{
		"best_bid":   &t.BestBid,
		"best_ask":   &t.BestAsk,
		"generation": &t.Generation,
		"slot":       &t.Slot,
	} {
		if *dst, err = strconv.ParseUint(fields[name], 10, 64); err != nil {
			return Top{}, false, fmt.Errorf("cached %s of %s: %w", name, market, err)
		}
	}
	ms, err := strconv.ParseInt(fields["updated_ms"], 10, 64)
	if err != nil {
		return Top{}, false, fmt.Errorf("cached updated_ms of %s: %w", market, err)
	}
	t.UpdatedAt = time.UnixMilli(ms)
	return t, true, nil
}
