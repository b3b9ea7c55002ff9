package docview

import (
	"image"

	"github.com/gogpu/docview/internal/cache"
)

// Page image cache tuning.
const (
	// PageCacheSize caps the number of cached page bitmaps.
	PageCacheSize = 100

	// ScaleTolerance is the fraction of the required scale a cached
	// bitmap may fall short by and still count as good enough. A page
	// cached at 85% of the needed resolution is displayed as-is; below
	// that a re-fetch at higher quality is scheduled.
	ScaleTolerance = 0.85
)

// cachedPage is one LRU entry: a decoded page bitmap and the effective
// scale it was rendered at.
type cachedPage struct {
	img   image.Image
	scale float64
}

// pageImageCache is the engine's LRU page bitmap store, keyed by page
// number. Size never exceeds the cap; eviction is strictly least recently
// used.
type pageImageCache struct {
	lru *cache.Cache[int, cachedPage]
}

func newPageImageCache(capacity int) *pageImageCache {
	if capacity <= 0 {
		capacity = PageCacheSize
	}
	return &pageImageCache{lru: cache.New[int, cachedPage](capacity)}
}

// get returns the cached entry for a page, touching its LRU position.
func (c *pageImageCache) get(page int) (cachedPage, bool) {
	return c.lru.Get(page)
}

// peek returns the cached entry without touching LRU order. The scheduler
// uses it when deciding whether to skip a page, so probing alone does not
// distort eviction.
func (c *pageImageCache) peek(page int) (cachedPage, bool) {
	return c.lru.Peek(page)
}

// put inserts or refreshes a page bitmap. A lower-scale image never
// replaces a higher-scale one already cached (an upgrade in flight may
// race a preview completion).
func (c *pageImageCache) put(page int, img image.Image, scale float64) {
	if img == nil {
		return
	}
	if existing, ok := c.lru.Peek(page); ok && existing.scale > scale {
		// Keep the better bitmap, but refresh recency.
		c.lru.Get(page)
		return
	}
	c.lru.Set(page, cachedPage{img: img, scale: scale})
}

// goodEnough reports whether a cached entry satisfies the scale required
// by the current zoom, within ScaleTolerance.
func (c *pageImageCache) goodEnough(entry cachedPage, requiredScale float64) bool {
	return entry.img != nil && entry.scale >= requiredScale*ScaleTolerance
}

// purge drops a page's entry, used on decode failures.
func (c *pageImageCache) purge(page int) {
	c.lru.Purge(page)
}

func (c *pageImageCache) clear()             { c.lru.Clear() }
func (c *pageImageCache) len() int           { return c.lru.Len() }
func (c *pageImageCache) stats() cache.Stats { return c.lru.Stats() }
