// Package cache provides a concurrent sharded LRU cache.
//
// The engine's own page cache is mutated only from its scheduling path and
// lives in internal/cache. This package serves the other side of the
// boundary: content providers memoizing rendered page blobs that are
// requested concurrently by the scheduler, the tile coordinator, and
// fire-and-forget prefetch workers. Sharding keeps those goroutines off a
// single mutex.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Default configuration constants.
const (
	// DefaultShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	DefaultShardCount = 16

	// DefaultCapacity is the default maximum entries per shard.
	DefaultCapacity = 32

	// shardMask is used for fast shard selection (DefaultShardCount - 1).
	shardMask = DefaultShardCount - 1
)

// Hasher is a function that computes a hash for a key.
// Used by ShardedCache for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// IntHasher computes a hash of an int key using FNV-1a.
func IntHasher(i int) uint64 {
	return Uint64Hasher(uint64(i))
}

// Uint64Hasher computes an FNV-1a hash of the key's bytes. Render-request
// keys pack page number and quantized scale into a uint64; hashing spreads
// sequential pages across shards.
func Uint64Hasher(u uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(u >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// ShardedCache is a thread-safe, sharded LRU cache.
//
// Features:
//   - 16 shards for reduced lock contention
//   - LRU eviction with configurable capacity per shard
//   - Atomic statistics for monitoring
//
// Thread safety: safe for concurrent use from any goroutine.
type ShardedCache[K comparable, V any] struct {
	shards   [DefaultShardCount]*shard[K, V]
	hasher   Hasher[K]
	capacity int // Per-shard capacity

	// Statistics (atomic for zero-allocation reads)
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// shard is a single shard of the cache with its own mutex.
type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	lru     lruList[K]
}

// entry holds a cached value with its LRU node.
type entry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

// NewSharded creates a new sharded cache with the specified capacity per
// shard. Total capacity is approximately capacity * DefaultShardCount (16).
//
// The hasher function is used to compute hash values for shard selection.
// Use StringHasher, IntHasher, or Uint64Hasher for common key types.
//
// If capacity <= 0, DefaultCapacity is used.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K]) *ShardedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &ShardedCache[K, V]{
		hasher:   hasher,
		capacity: capacity,
	}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{
			entries: make(map[K]*entry[K, V]),
		}
	}
	return c
}

// getShard returns the shard for a given key.
func (c *ShardedCache[K, V]) getShard(key K) *shard[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// Get retrieves a cached value by key.
// Returns (value, true) if found, (zero, false) otherwise.
// On a hit, the entry is moved to the front of its shard's LRU list.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	s := c.getShard(key)

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.lru.MoveToFront(e.node)
	value := e.value
	s.mu.Unlock()

	c.hits.Add(1)
	return value, true
}

// Set stores a value in the cache. If the shard is at capacity, its least
// recently used entries are evicted first.
//
// The value is stored as-is (not copied). Callers should not modify it
// after caching.
func (c *ShardedCache[K, V]) Set(key K, value V) {
	s := c.getShard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		existing.value = value
		s.lru.MoveToFront(existing.node)
		return
	}

	for s.lru.Len() >= c.capacity {
		oldest, ok := s.lru.RemoveOldest()
		if !ok {
			break
		}
		delete(s.entries, oldest)
		c.evictions.Add(1)
	}

	s.entries[key] = &entry[K, V]{
		value: value,
		node:  s.lru.PushFront(key),
	}
}

// Delete removes an entry from the cache.
// Returns true if the entry was found and removed.
func (c *ShardedCache[K, V]) Delete(key K) bool {
	s := c.getShard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.lru.Remove(e.node)
	delete(s.entries, key)
	return true
}

// Clear removes all entries from the cache.
func (c *ShardedCache[K, V]) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[K]*entry[K, V])
		s.lru.Clear()
		s.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Capacity returns the per-shard capacity.
func (c *ShardedCache[K, V]) Capacity() int {
	return c.capacity
}

// TotalCapacity returns the total capacity across all shards.
func (c *ShardedCache[K, V]) TotalCapacity() int {
	return c.capacity * DefaultShardCount
}

// Stats returns current cache statistics.
// This operation takes each shard lock briefly to count entries.
func (c *ShardedCache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Len:           c.Len(),
		Capacity:      c.capacity,
		TotalCapacity: c.TotalCapacity(),
		Hits:          hits,
		Misses:        misses,
		HitRate:       hitRate,
		Evictions:     c.evictions.Load(),
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the per-shard capacity.
	Capacity int
	// TotalCapacity is the total capacity across all shards.
	TotalCapacity int
	// Hits is the number of cache hits.
	Hits uint64
	// Misses is the number of cache misses.
	Misses uint64
	// HitRate is the cache hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of evicted entries.
	Evictions uint64
}
