// Package cache provides the in-process TTL cache used by read-through handlers.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/pkg/clock"
)

// physicalGrace keeps entries in go-cache a little longer than their logical lifetime so
// that visibility is always decided by the injected clock, never by go-cache's own timer.
const physicalGrace = time.Minute

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// ResponseCache is a key/value store with per-entry expiry and prefix invalidation.
// An entry is visible iff now < expiresAt according to the cache's clock.
type ResponseCache struct {
	store   *gocache.Cache
	clock   clock.Clock
	metrics *monitoring.Metrics
}

// NewResponseCache creates an empty cache.
//
// Parameters:
//   - clk: time source for expiry; nil selects the wall clock
//   - cleanupInterval: how often go-cache drops physically expired items (0 disables)
//   - metrics: optional, may be nil
func NewResponseCache(clk clock.Clock, cleanupInterval time.Duration, metrics *monitoring.Metrics) *ResponseCache {
	if clk == nil {
		clk = clock.New()
	}
	return &ResponseCache{
		store:   gocache.New(gocache.NoExpiration, cleanupInterval),
		clock:   clk,
		metrics: metrics,
	}
}

// Get returns the value stored under key if it has not expired. Expired entries are
// removed on the way out.
func (c *ResponseCache) Get(key string) (interface{}, bool) {
	item, found := c.store.Get(key)
	if !found {
		c.metrics.RecordCacheLookup(false)
		return nil, false
	}

	e := item.(entry)
	if !c.clock.Now().Before(e.expiresAt) {
		c.store.Delete(key)
		c.metrics.RecordCacheLookup(false)
		return nil, false
	}

	c.metrics.RecordCacheLookup(true)
	return e.value, true
}

// Set stores value under key for ttlSeconds, replacing any previous entry.
func (c *ResponseCache) Set(key string, value interface{}, ttlSeconds int) {
	ttl := time.Duration(ttlSeconds) * time.Second
	c.store.Set(key, entry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}, ttl+physicalGrace)
}

// Invalidate removes every entry whose key starts with prefix and returns how many
// were removed.
func (c *ResponseCache) Invalidate(prefix string) int {
	removed := 0
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
			removed++
		}
	}
	c.metrics.RecordCacheInvalidation(namespaceOf(prefix), removed)
	return removed
}

// Len returns the number of physically stored entries, expired ones included.
func (c *ResponseCache) Len() int {
	return c.store.ItemCount()
}

// namespaceOf keeps metric label cardinality bounded: "tasks_<id>_" becomes "tasks".
func namespaceOf(prefix string) string {
	if i := strings.IndexByte(prefix, '_'); i > 0 {
		return prefix[:i]
	}
	return prefix
}
