package docview

import (
	"image"
	"testing"
)

func TestTileScaleFor(t *testing.T) {
	tests := []struct {
		name       string
		zoom       float64
		pixelRatio float64
		want       float64
	}{
		{"below one", 0.5, 1, 1},
		{"exactly one", 1, 1, 1},
		{"rounds up to pow2", 3, 1, 4},
		{"exact pow2", 8, 1, 8},
		{"retina doubles", 3, 2, 8},
		{"capped", 40, 2, MaxTileScale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tileScaleFor(tt.zoom, tt.pixelRatio); got != tt.want {
				t.Errorf("tileScaleFor(%v, %v) = %v, want %v", tt.zoom, tt.pixelRatio, got, tt.want)
			}
		})
	}
}

func TestPageScaleFor(t *testing.T) {
	if got := pageScaleFor(2, 1); got != 2 {
		t.Errorf("pageScaleFor(2, 1) = %v, want 2", got)
	}
	if got := pageScaleFor(16, 2); got != MaxPageScale {
		t.Errorf("pageScaleFor(16, 2) = %v, want cap %v", got, MaxPageScale)
	}
	if got := pageScaleFor(0.01, 1); got != 0.1 {
		t.Errorf("pageScaleFor(0.01, 1) = %v, want floor 0.1", got)
	}
}

func TestTilesIntersecting(t *testing.T) {
	// A 612x792 page at scale 8: tiles cover 32x32 canvas units,
	// 20 columns by 25 rows.
	pageRect := Rect{X: 0, Y: 0, W: 612, H: 792}

	t.Run("viewport subset", func(t *testing.T) {
		visible := Rect{X: 100, Y: 100, W: 64, H: 64}
		reqs := tilesIntersecting(1, pageRect, visible, 8)
		if len(reqs) == 0 {
			t.Fatal("expected tiles for intersecting viewport")
		}
		// The lookahead window is 96x96 centered on the viewport, so at
		// most a 5x5 tile block qualifies.
		if len(reqs) > 25 {
			t.Errorf("got %d tiles, want at most 25", len(reqs))
		}
		for _, r := range reqs {
			if r.tile.Page != 1 {
				t.Errorf("tile page = %d, want 1", r.tile.Page)
			}
			if r.tile.Scale != 8 {
				t.Errorf("tile scale = %v, want 8", r.tile.Scale)
			}
			if r.tile.PageRect.W <= 0 || r.tile.PageRect.H <= 0 {
				t.Errorf("tile %d,%d has empty rect", r.tile.TX, r.tile.TY)
			}
		}
	})

	t.Run("disjoint viewport", func(t *testing.T) {
		visible := Rect{X: 5000, Y: 5000, W: 800, H: 600}
		if reqs := tilesIntersecting(1, pageRect, visible, 8); reqs != nil {
			t.Errorf("expected no tiles, got %d", len(reqs))
		}
	})

	t.Run("edge tiles clipped", func(t *testing.T) {
		// Viewport over the bottom-right corner.
		visible := Rect{X: 580, Y: 760, W: 100, H: 100}
		reqs := tilesIntersecting(1, pageRect, visible, 8)
		if len(reqs) == 0 {
			t.Fatal("expected corner tiles")
		}
		for _, r := range reqs {
			if r.tile.TX == 19 && r.tile.PageRect.W != 612-19*32 {
				t.Errorf("last column width = %v, want %v", r.tile.PageRect.W, 612-19*32)
			}
			if r.tile.TY == 24 && r.tile.PageRect.H != 792-24*32 {
				t.Errorf("last row height = %v, want %v", r.tile.PageRect.H, 792-24*32)
			}
		}
	})

	t.Run("center tiles are critical", func(t *testing.T) {
		visible := Rect{X: 200, Y: 300, W: 128, H: 128}
		reqs := tilesIntersecting(1, pageRect, visible, 8)
		center := visible.Center()
		for _, r := range reqs {
			canvasRect := Rect{
				X: pageRect.X + r.tile.PageRect.X,
				Y: pageRect.Y + r.tile.PageRect.Y,
				W: r.tile.PageRect.W,
				H: r.tile.PageRect.H,
			}
			if canvasRect.Contains(center) && r.priority != TileCritical {
				t.Errorf("center tile %d,%d priority = %v, want critical", r.tile.TX, r.tile.TY, r.priority)
			}
			if !canvasRect.Intersects(visible) && r.priority != TileLow {
				t.Errorf("lookahead tile %d,%d priority = %v, want low", r.tile.TX, r.tile.TY, r.priority)
			}
		}
	})
}

func TestTileCoordinator(t *testing.T) {
	tc := newTileCoordinator(4)
	key := TileKey{Page: 1, TX: 0, TY: 0, Scale: 8}
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))

	tc.markPending(key, 7)
	if !tc.isPending(key) {
		t.Fatal("isPending = false after markPending")
	}

	t.Run("stale completion discarded", func(t *testing.T) {
		if tc.complete(key, img, 7, 8) {
			t.Error("stale completion accepted")
		}
		if _, ok := tc.get(key); ok {
			t.Error("stale tile cached")
		}
		if tc.isPending(key) {
			t.Error("completion did not clear pending mark")
		}
	})

	t.Run("current completion cached", func(t *testing.T) {
		tc.markPending(key, 8)
		if !tc.complete(key, img, 8, 8) {
			t.Fatal("current completion rejected")
		}
		if _, ok := tc.get(key); !ok {
			t.Error("completed tile not cached")
		}
	})

	t.Run("eviction respects cap", func(t *testing.T) {
		for i := range 10 {
			k := TileKey{Page: 2, TX: i, TY: 0, Scale: 8}
			tc.markPending(k, 8)
			tc.complete(k, img, 8, 8)
		}
		if n := tc.cache.Len(); n > 4 {
			t.Errorf("cache len = %d, want at most 4", n)
		}
	})

	t.Run("clear empties everything", func(t *testing.T) {
		tc.markPending(TileKey{Page: 3, Scale: 8}, 8)
		tc.clear()
		if tc.cache.Len() != 0 {
			t.Error("clear left cached tiles")
		}
		if tc.isPending(TileKey{Page: 3, Scale: 8}) {
			t.Error("clear left pending marks")
		}
	})
}
