package transport

import (
	"context"
	"sync"
	"time"

	"github.com/ricesearch/rice-facets/internal/pkg/hash"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
	"github.com/ricesearch/rice-facets/internal/query"
)

// Cache stores backend results by key. Cached results are shared and must
// be treated as read-only.
type Cache interface {
	Get(ctx context.Context, key string) (*query.Result, bool, error)
	Set(ctx context.Context, key string, res *query.Result) error
}

type memoryEntry struct {
	res     *query.Result
	expires time.Time
}

// MemoryCache is a bounded in-process cache with optional expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string
	size    int
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most size entries.
// A zero ttl keeps entries until evicted.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size < 1 {
		size = 1000
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		size:    size,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a live entry.
func (c *MemoryCache) Get(_ context.Context, key string) (*query.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.res, true, nil
}

// Set stores res, evicting the oldest entries when full.
func (c *MemoryCache) Set(_ context.Context, key string, res *query.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = memoryEntry{res: res, expires: expires}

	for len(c.entries) > c.size && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	// Drop keys already removed by expiry so order cannot grow unbounded.
	if len(c.order) > 2*c.size {
		live := c.order[:0]
		for _, k := range c.order {
			if _, ok := c.entries[k]; ok {
				live = append(live, k)
			}
		}
		c.order = live
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachingSearcher serves repeated queries from a cache.
type CachingSearcher struct {
	inner      Searcher
	cache      Cache
	endpoint   string
	serializer query.Serializer
	log        *logger.Logger
}

// NewCachingSearcher wraps inner. Keys combine endpoint and the serialized
// query, so the highlight field must match the one inner sends.
func NewCachingSearcher(inner Searcher, cache Cache, endpoint, highlightField string, log *logger.Logger) *CachingSearcher {
	if log == nil {
		log = logger.Discard()
	}
	return &CachingSearcher{
		inner:      inner,
		cache:      cache,
		endpoint:   endpoint,
		serializer: query.Serializer{HighlightField: highlightField},
		log:        log.WithComponent("cache"),
	}
}

// Key returns the cache key for q.
func (s *CachingSearcher) Key(q *query.Query) string {
	return hash.QueryKey(s.endpoint, s.serializer.Serialize(q, false))
}

// Search returns a cached result or runs the query and stores it.
// Cache failures are logged and never fail the search.
func (s *CachingSearcher) Search(ctx context.Context, q *query.Query) (*query.Result, error) {
	key := s.Key(q)

	res, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache get failed", "key", key, "error", err)
	} else if ok {
		s.log.Debug("cache hit", "key", key)
		return res, nil
	}

	res, err = s.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, res); err != nil {
		s.log.Warn("cache set failed", "key", key, "error", err)
	}
	return res, nil
}
