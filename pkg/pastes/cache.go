package pastes

import (
	"context"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/pastebin/pkg/observability"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// LoadFunc fetches the newest n public pastes
type LoadFunc func(ctx context.Context, n int) ([]storage.Paste, error)

type latestEntry struct {
	pastes    []storage.Paste
	expiresAt time.Time
}

// LatestCache memoizes the newest public pastes for a short time. Entries
// are keyed by count. Freshness is judged against the injected clock; the
// LRU's own TTL only bounds how long stale entries linger in memory.
//
// Each Invalidate starts a new generation. A load that began in an older
// generation is returned to its callers but never stored.
type LatestCache struct {
	ttl     time.Duration
	clock   clockwork.Clock
	load    LoadFunc
	entries *lru.LRU[string, latestEntry]
	group   singleflight.Group
	metrics *observability.Metrics

	mu  sync.Mutex
	gen uint64
}

// NewLatestCache creates a cache holding up to size distinct counts
func NewLatestCache(load LoadFunc, ttl time.Duration, size int, clock clockwork.Clock, metrics *observability.Metrics) *LatestCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if size <= 0 {
		size = 8
	}
	return &LatestCache{
		ttl:     ttl,
		clock:   clock,
		load:    load,
		entries: lru.NewLRU[string, latestEntry](size, nil, 2*ttl+time.Minute),
		metrics: metrics,
	}
}

// Get returns the cached pastes for n, reloading once the entry expired.
// Concurrent reloads for the same n share one store query.
func (c *LatestCache) Get(ctx context.Context, n int) ([]storage.Paste, error) {
	key := strconv.Itoa(n)
	now := c.clock.Now()

	if e, ok := c.entries.Get(key); ok && now.Before(e.expiresAt) {
		c.metrics.CacheHit("latest", true)
		return copyPastes(e.pastes), nil
	}
	c.metrics.CacheHit("latest", false)

	gen := c.generation()
	flight := key + "@" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(flight, func() (interface{}, error) {
		pastes, err := c.load(ctx, n)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries.Add(key, latestEntry{pastes: pastes, expiresAt: c.clock.Now().Add(c.ttl)})
		}
		c.mu.Unlock()
		return pastes, nil
	})
	if err != nil {
		return nil, err
	}
	return copyPastes(v.([]storage.Paste)), nil
}

// Invalidate drops every cached entry and any load still in flight
func (c *LatestCache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.entries.Purge()
	c.mu.Unlock()
}

func (c *LatestCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func copyPastes(in []storage.Paste) []storage.Paste {
	out := make([]storage.Paste, len(in))
	copy(out, in)
	return out
}
