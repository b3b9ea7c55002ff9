package docview

import (
	"image"
	"math"

	"github.com/gogpu/docview/internal/cache"
)

// Tile path tuning.
const (
	// TileSize is the fixed tile edge in pixels.
	TileSize = 256

	// TileZoomThreshold is the zoom multiplier above which pages render
	// as tiles instead of whole bitmaps.
	TileZoomThreshold = 4.0

	// MaxTileScale caps the tile render scale. Tiles are small, so they
	// can afford a far higher resolution ceiling than whole pages.
	MaxTileScale = 32.0

	// MaxPageScale caps the whole-page render scale; full-page bitmaps
	// at tile-level resolution would be unbounded.
	MaxPageScale = 4.0

	// TileCacheSize caps the number of cached tile bitmaps.
	TileCacheSize = 400

	// tileLookahead expands the viewport by this fraction when choosing
	// which tiles to request.
	tileLookahead = 0.25
)

// TilePriority orders tile requests by urgency.
type TilePriority int

const (
	// TileCritical tiles are at the viewport center.
	TileCritical TilePriority = iota
	// TileHigh tiles are well inside the viewport.
	TileHigh
	// TileMedium tiles are near the viewport edge.
	TileMedium
	// TileLow tiles are in the lookahead margin.
	TileLow
)

// String returns the priority name used in logs.
func (p TilePriority) String() string {
	switch p {
	case TileCritical:
		return "critical"
	case TileHigh:
		return "high"
	case TileMedium:
		return "medium"
	case TileLow:
		return "low"
	default:
		return "unknown"
	}
}

// TileKey identifies a fixed-size region of a page at a given render
// scale. Scale is always a power of two (see tileScaleFor), so the float
// compares exactly and the key is safe as a map key.
type TileKey struct {
	Page   int
	TX, TY int
	Scale  float64
}

// Tile describes one tile render request for a TileRenderer.
type Tile struct {
	// Page is the 1-based page number.
	Page int

	// TX, TY are the tile grid coordinates within the page.
	TX, TY int

	// Scale is the render scale for the tile.
	Scale float64

	// PageRect is the tile's region in page coordinates at 100% zoom.
	// Edge tiles are smaller than TileSize/Scale.
	PageRect Rect
}

// Key returns the cache key for the tile.
func (t Tile) Key() TileKey {
	return TileKey{Page: t.Page, TX: t.TX, TY: t.TY, Scale: t.Scale}
}

// tileScaleFor returns the tile render scale for a zoom level: the next
// power of two at or above zoom*pixelRatio, clamped to [1, MaxTileScale].
// Power-of-two scales keep keys exact and let one tile set serve a range
// of nearby zooms.
func tileScaleFor(zoom, pixelRatio float64) float64 {
	target := zoom * pixelRatio
	if target <= 1 {
		return 1
	}
	scale := math.Pow(2, math.Ceil(math.Log2(target)))
	return math.Min(scale, MaxTileScale)
}

// pageScaleFor returns the whole-page render scale for a zoom level,
// capped at MaxPageScale.
func pageScaleFor(zoom, pixelRatio float64) float64 {
	scale := zoom * pixelRatio
	if scale < 0.1 {
		return 0.1
	}
	return math.Min(scale, MaxPageScale)
}

// tileRequest is a prioritized tile render request.
type tileRequest struct {
	tile     Tile
	priority TilePriority
	// distance is the canvas-space distance from the viewport center,
	// the sort key within a priority class.
	distance float64
}

// tilesIntersecting returns the tiles of a page that intersect the
// viewport (plus lookahead), prioritized by distance from the viewport
// center. Tile indices are derived arithmetically from the intersection,
// so cost is proportional to the number of returned tiles.
func tilesIntersecting(page int, pageRect Rect, visible Rect, scale float64) []tileRequest {
	if scale <= 0 || pageRect.Empty() {
		return nil
	}
	window := visible.Expand(visible.W*tileLookahead, visible.H*tileLookahead)
	if !window.Intersects(pageRect) {
		return nil
	}

	// Canvas-space size of one full tile at this scale.
	tileCanvas := TileSize / scale

	cols := int(math.Ceil(pageRect.W / tileCanvas))
	rows := int(math.Ceil(pageRect.H / tileCanvas))

	firstCol := max(int(math.Floor((window.X-pageRect.X)/tileCanvas)), 0)
	lastCol := min(int(math.Floor((window.MaxX()-pageRect.X)/tileCanvas)), cols-1)
	firstRow := max(int(math.Floor((window.Y-pageRect.Y)/tileCanvas)), 0)
	lastRow := min(int(math.Floor((window.MaxY()-pageRect.Y)/tileCanvas)), rows-1)
	if firstCol > lastCol || firstRow > lastRow {
		return nil
	}

	center := visible.Center()
	// Distance bands for priority classes, relative to the viewport.
	near := math.Hypot(visible.W, visible.H) / 4

	var out []tileRequest
	for ty := firstRow; ty <= lastRow; ty++ {
		for tx := firstCol; tx <= lastCol; tx++ {
			r := Rect{
				X: pageRect.X + float64(tx)*tileCanvas,
				Y: pageRect.Y + float64(ty)*tileCanvas,
				W: math.Min(tileCanvas, pageRect.MaxX()-(pageRect.X+float64(tx)*tileCanvas)),
				H: math.Min(tileCanvas, pageRect.MaxY()-(pageRect.Y+float64(ty)*tileCanvas)),
			}
			d := r.Center().DistanceTo(center)
			var prio TilePriority
			switch {
			case d <= near:
				prio = TileCritical
			case r.Intersects(visible):
				if d <= near*2 {
					prio = TileHigh
				} else {
					prio = TileMedium
				}
			default:
				prio = TileLow
			}
			out = append(out, tileRequest{
				tile: Tile{
					Page:  page,
					TX:    tx,
					TY:    ty,
					Scale: scale,
					PageRect: Rect{
						X: r.X - pageRect.X,
						Y: r.Y - pageRect.Y,
						W: r.W,
						H: r.H,
					},
				},
				priority: prio,
				distance: d,
			})
		}
	}
	return out
}

// tileCoordinator owns the tile cache and the set of in-flight tile
// fetches. It is mutated only under the engine lock.
type tileCoordinator struct {
	cache *cache.Cache[TileKey, image.Image]

	// pending maps in-flight tiles to the render version that started
	// them.
	pending map[TileKey]uint64
}

func newTileCoordinator(capacity int) *tileCoordinator {
	if capacity <= 0 {
		capacity = TileCacheSize
	}
	return &tileCoordinator{
		cache:   cache.New[TileKey, image.Image](capacity),
		pending: make(map[TileKey]uint64),
	}
}

// get returns a cached tile bitmap.
func (tc *tileCoordinator) get(key TileKey) (image.Image, bool) {
	return tc.cache.Get(key)
}

// markPending records an in-flight tile fetch.
func (tc *tileCoordinator) markPending(key TileKey, version uint64) {
	tc.pending[key] = version
}

// isPending reports whether a tile fetch is already in flight.
func (tc *tileCoordinator) isPending(key TileKey) bool {
	_, ok := tc.pending[key]
	return ok
}

// complete stores a fetched tile if its version is still current.
// Returns false for stale completions, which are discarded.
func (tc *tileCoordinator) complete(key TileKey, img image.Image, version, currentVersion uint64) bool {
	delete(tc.pending, key)
	if version != currentVersion || img == nil {
		return false
	}
	tc.cache.Set(key, img)
	return true
}

// fail drops the pending mark for a failed tile fetch.
func (tc *tileCoordinator) fail(key TileKey) {
	delete(tc.pending, key)
}

// clear drops every cached and pending tile (mode switch, destroy).
func (tc *tileCoordinator) clear() {
	tc.cache.Clear()
	tc.pending = make(map[TileKey]uint64)
}

func (tc *tileCoordinator) stats() cache.Stats { return tc.cache.Stats() }
