package cache

import "sync"

// Cache is a generic thread-safe LRU cache with a hard entry cap.
//
// Invariants:
//   - Len() never exceeds the cap.
//   - On overflow, the evicted entry is always the least recently touched.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*cacheEntry[K, V]
	lru     lruList[K]
	cap     int
	onEvict func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

// cacheEntry holds a cached value with its LRU node.
type cacheEntry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

// New creates a new cache holding at most capacity entries.
// A capacity below 1 is treated as 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		entries: make(map[K]*cacheEntry[K, V]),
		cap:     capacity,
	}
}

// OnEvict registers a callback invoked for every entry removed by eviction
// or Purge (not by Delete). The callback runs with the cache lock held;
// keep it fast and do not call back into the cache.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get retrieves a value and marks it most recently used.
// Returns (value, true) if found, (zero, false) otherwise.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.lru.MoveToFront(entry.node)
	return entry.value, true
}

// Peek retrieves a value without touching its LRU position.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value and marks it most recently used. If the cache is at
// capacity, the least recently used entry is evicted first.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.value = value
		c.lru.MoveToFront(existing.node)
		return
	}

	for len(c.entries) >= c.cap {
		oldest, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		c.evict(oldest)
	}

	c.entries[key] = &cacheEntry[K, V]{
		value: value,
		node:  c.lru.PushFront(key),
	}
}

// Delete removes an entry without invoking the eviction callback.
// Returns true if the entry was found and removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	c.lru.Remove(entry.node)
	delete(c.entries, key)
	return true
}

// Purge removes an entry and invokes the eviction callback, as if it had
// been evicted. Used when an entry is known to be corrupt.
func (c *Cache[K, V]) Purge(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	c.lru.Remove(entry.node)
	c.evict(key)
	return true
}

// evict removes key from the map and fires the callback.
// Caller must hold c.mu and have already unlinked the LRU node.
func (c *Cache[K, V]) evict(key K) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(key, entry.value)
	}
}

// Keys returns the cached keys ordered from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.entries))
	for n := c.lru.head; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Clear removes all entries without invoking the eviction callback.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*cacheEntry[K, V])
	c.lru.Clear()
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the entry cap.
func (c *Cache[K, V]) Capacity() int {
	return c.cap
}

// Stats returns current cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Len:       len(c.entries),
		Capacity:  c.cap,
		Hits:      c.hits,
		Misses:    c.misses,
		HitRate:   hitRate,
		Evictions: c.evictions,
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the entry cap.
	Capacity int
	// Hits is the number of cache hits.
	Hits uint64
	// Misses is the number of cache misses.
	Misses uint64
	// HitRate is the cache hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of evicted entries.
	Evictions uint64
}
