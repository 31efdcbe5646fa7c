package pipeline

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

// Cache defaults.
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

// Cache memoizes finished graphs keyed by content signature. It is owned
// by the pipeline's composition root and injected, so tests run against a
// fresh, isolated instance instead of shared process state. Values are
// deep-copied on both sides so no caller ever aliases a cached graph.
type Cache struct {
	lru *expirable.LRU[string, *schema.GraphData]
}

// NewCache creates a cache with the given capacity and entry TTL.
// Non-positive values fall back to the defaults.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{lru: expirable.NewLRU[string, *schema.GraphData](size, nil, ttl)}
}

// Get returns a deep copy of the cached graph for key, if present and
// not expired.
func (c *Cache) Get(key string) (*schema.GraphData, bool) {
	g, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// Add stores a deep copy of the graph under key.
func (c *Cache) Add(key string, g *schema.GraphData) {
	c.lru.Add(key, g.Clone())
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops all entries.
func (c *Cache) Purge() {
	c.lru.Purge()
}
