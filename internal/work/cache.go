package work

import "github.com/jellydator/ttlcache/v3"

// Cache stores the result computed for each key. Entries never expire and are
// never evicted, and the cache runs no background goroutines.
type Cache[K comparable, V any] struct {
	items *ttlcache.Cache[K, V]
}

// NewCache creates an empty cache.
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: ttlcache.New[K, V](
			ttlcache.WithTTL[K, V](ttlcache.NoTTL),
			ttlcache.WithDisableTouchOnHit[K, V](),
		),
	}
}

// Get returns the result stored for key, if any.
func (c *Cache[K, V]) Get(key K) (v V, ok bool) {
	item := c.items.Get(key)
	if item == nil {
		return
	}
	return item.Value(), true
}

// Put stores the result for key, replacing any existing result.
func (c *Cache[K, V]) Put(key K, v V) {
	c.items.Set(key, v, ttlcache.NoTTL)
}

// Len returns the number of keys with stored results.
func (c *Cache[K, V]) Len() int {
	return c.items.Len()
}
