package router

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/plan"
)

// CacheKey identifies a cacheable routed-scan result: the scanned
// entity, its equality predicate (if any), and the routing
// policy used. The DDL Orchestrator invalidates the whole cache on every
// committed schema change; there is
// no finer-grained invalidation because any placement/partition change
// can change the routing decision for any predicate.
type CacheKey struct {
	Entity   catalog.ID
	Policy   Policy
	EqCol    catalog.ID
	EqVal    interface{}
	HasEq    bool
}

// NewCacheKey builds a CacheKey from a scan node and policy.
func NewCacheKey(n *plan.Node, policy Policy) CacheKey {
	k := CacheKey{Entity: n.Entity, Policy: policy}
	if n.EqualityFilter != nil {
		k.EqCol = n.EqualityFilter.Column
		k.EqVal = n.EqualityFilter.Value
		k.HasEq = true
	}
	return k
}

// Cache is an LRU cache of routed-scan results keyed by CacheKey,
// bounded by config.Config.RouterCacheSize.
type Cache struct {
	lru *lru.Cache[CacheKey, *plan.RoutedNode]
}

// NewCache returns a Cache holding up to size entries.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[CacheKey, *plan.RoutedNode](size)
	return &Cache{lru: c}
}

func (c *Cache) Get(k CacheKey) (*plan.RoutedNode, bool) {
	if c == nil || c.lru == nil {
		return nil, false
	}
	return c.lru.Get(k)
}

func (c *Cache) Put(k CacheKey, v *plan.RoutedNode) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(k, v)
}

// Invalidate clears the entire cache. Called by the DDL Orchestrator on
// every committed schema change.
func (c *Cache) Invalidate() {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Purge()
}
