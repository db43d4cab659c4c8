package query

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 300 * time.Second
)

// Cache holds full result sets by request key. Entries are never
// invalidated on write; readers tolerate up to one TTL of staleness.
type Cache interface {
	Get(key string) ([]ObjectRow, bool)
	Set(key string, rows []ObjectRow)
}

type LRUCache struct {
	lru *expirable.LRU[string, []ObjectRow]
}

func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LRUCache{lru: expirable.NewLRU[string, []ObjectRow](size, nil, ttl)}
}

func (c *LRUCache) Get(key string) ([]ObjectRow, bool) {
	return c.lru.Get(key)
}

func (c *LRUCache) Set(key string, rows []ObjectRow) {
	c.lru.Add(key, rows)
}

func (c *LRUCache) Len() int {
	return c.lru.Len()
}
