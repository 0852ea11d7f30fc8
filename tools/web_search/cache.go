package web_search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voiceshop/assistant/models"
)

// Cached wraps a Searcher with a short-TTL result cache and a minimum call
// interval, so repeated turns don't hammer the SERP API. With no redis client
// it falls back to an in-process map.
type Cached struct {
	next        Searcher
	rdb         *redis.Client
	ttl         time.Duration
	minInterval time.Duration

	mu       sync.Mutex
	lastCall time.Time
	local    map[string]localEntry
}

type localEntry struct {
	at       time.Time
	products []models.Product
}

func NewCached(next Searcher, rdb *redis.Client, ttl, minInterval time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 180 * time.Second
	}
	return &Cached{
		next:        next,
		rdb:         rdb,
		ttl:         ttl,
		minInterval: minInterval,
		local:       make(map[string]localEntry),
	}
}

func (c *Cached) Discover(ctx context.Context, q string, k int) ([]models.Product, error) {
	key := fmt.Sprintf("websearch:%s:%d", q, k)

	if hit, ok := c.lookup(ctx, key); ok {
		return hit, nil
	}

	if err := c.rateGate(ctx); err != nil {
		return nil, err
	}

	products, err := c.next.Discover(ctx, q, k)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, products)
	return products, nil
}

func (c *Cached) lookup(ctx context.Context, key string) ([]models.Product, bool) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Bytes()
		if err != nil {
			return nil, false
		}
		var products []models.Product
		if err := json.Unmarshal(raw, &products); err != nil {
			return nil, false
		}
		return products, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.local[key]
	if !ok || time.Since(e.at) > c.ttl {
		return nil, false
	}
	return e.products, true
}

func (c *Cached) store(ctx context.Context, key string, products []models.Product) {
	if c.rdb != nil {
		if raw, err := json.Marshal(products); err == nil {
			// cache failures are not call failures
			_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
		}
		return
	}

	c.mu.Lock()
	c.local[key] = localEntry{at: time.Now(), products: products}
	c.mu.Unlock()
}

// rateGate enforces the minimum interval between live calls, honoring
// cancellation while it waits.
func (c *Cached) rateGate(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	wait := c.minInterval - now.Sub(c.lastCall)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot before waiting so concurrent callers queue up.
	c.lastCall = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
