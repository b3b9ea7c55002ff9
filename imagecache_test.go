package docview

import (
	"image"
	"testing"
)

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestPageImageCacheBound(t *testing.T) {
	c := newPageImageCache(10)

	for page := 1; page <= 50; page++ {
		c.put(page, testImage(8, 8), 1.0)
		if c.len() > 10 {
			t.Fatalf("cache exceeded cap at page %d: %d entries", page, c.len())
		}
	}
	if c.len() != 10 {
		t.Errorf("len = %d, want 10", c.len())
	}
}

func TestPageImageCacheEvictsLRU(t *testing.T) {
	c := newPageImageCache(3)

	c.put(1, testImage(1, 1), 1)
	c.put(2, testImage(1, 1), 1)
	c.put(3, testImage(1, 1), 1)
	c.get(1) // touch
	c.put(4, testImage(1, 1), 1)

	if _, ok := c.peek(2); ok {
		t.Error("page 2 was LRU and should have been evicted")
	}
	if _, ok := c.peek(1); !ok {
		t.Error("page 1 was touched and must survive")
	}
}

func TestPageImageCacheGoodEnough(t *testing.T) {
	c := newPageImageCache(10)

	tests := []struct {
		name     string
		cached   float64
		required float64
		want     bool
	}{
		{"exact scale", 2.0, 2.0, true},
		{"higher scale", 4.0, 2.0, true},
		{"within tolerance", 1.8, 2.0, true}, // 1.8 >= 2.0*0.85
		{"below tolerance", 1.5, 2.0, false}, // 1.5 <  1.7
		{"far below", 0.5, 4.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := cachedPage{img: testImage(1, 1), scale: tt.cached}
			if got := c.goodEnough(entry, tt.required); got != tt.want {
				t.Errorf("goodEnough(scale=%v, required=%v) = %v, want %v",
					tt.cached, tt.required, got, tt.want)
			}
		})
	}

	if c.goodEnough(cachedPage{}, 1.0) {
		t.Error("entry without image must never be good enough")
	}
}

func TestPageImageCacheKeepsBetterScale(t *testing.T) {
	c := newPageImageCache(10)

	hi := testImage(4, 4)
	c.put(7, hi, 4.0)
	c.put(7, testImage(1, 1), 1.0) // stale preview must not downgrade

	entry, ok := c.get(7)
	if !ok {
		t.Fatal("entry missing")
	}
	if entry.scale != 4.0 || entry.img != hi {
		t.Errorf("high-scale bitmap replaced by lower: scale=%v", entry.scale)
	}

	// A better image does replace.
	c.put(7, testImage(8, 8), 8.0)
	entry, _ = c.get(7)
	if entry.scale != 8.0 {
		t.Errorf("upgrade not applied: scale=%v", entry.scale)
	}
}

func TestPageImageCachePurge(t *testing.T) {
	c := newPageImageCache(10)

	c.put(3, testImage(1, 1), 1)
	c.purge(3)

	if _, ok := c.peek(3); ok {
		t.Error("purged entry still cached")
	}
}

func TestPageImageCacheNilImage(t *testing.T) {
	c := newPageImageCache(10)
	c.put(1, nil, 1)
	if c.len() != 0 {
		t.Error("nil image must not be cached")
	}
}
