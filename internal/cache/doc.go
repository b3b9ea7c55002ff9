// Package cache provides the bounded LRU cache backing the engine's page
// image and tile stores.
//
// # Cache[K, V]
//
// A strict LRU cache with a hard entry cap: on overflow the least recently
// touched entry is always the one evicted, and the size never exceeds the
// cap. An optional eviction callback lets owners release resources tied to
// evicted entries (page surfaces dropping bitmap references).
//
//	c := cache.New[int, []byte](100)
//	c.Set(42, blob)
//	blob, ok := c.Get(42)
//
// # Thread Safety
//
// Cache is safe for concurrent use, though the engine mutates it only from
// its own scheduling path. It must not be copied after creation (it
// contains a mutex).
package cache
