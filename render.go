package docview

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// keyCanvasRect returns the page-space rectangle a tile key covers,
// clipped to the page size.
func keyCanvasRect(key TileKey, bounds image.Rectangle) Rect {
	edge := TileSize / key.Scale
	return Rect{
		X: float64(key.TX) * edge,
		Y: float64(key.TY) * edge,
		W: float64(bounds.Dx()) / key.Scale,
		H: float64(bounds.Dy()) / key.Scale,
	}
}

// RenderSurface rasterizes a page surface into a single bitmap at the
// given zoom: the whole-page image is scaled to fill the page, then any
// tile overlays are drawn on top at their native placement. Headless
// hosts use this to materialize what a GPU-backed host would composite
// per frame.
//
// Returns nil when the surface has no content yet.
func RenderSurface(s PageSurface, zoom float64) *image.RGBA {
	if zoom <= 0 || s.Rect.W <= 0 || s.Rect.H <= 0 {
		return nil
	}
	if s.Image == nil && len(s.Tiles) == 0 {
		return nil
	}

	w := int(math.Ceil(s.Rect.W * zoom))
	h := int(math.Ceil(s.Rect.H * zoom))
	if w <= 0 || h <= 0 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	if s.Image != nil {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), s.Image, s.Image.Bounds(), xdraw.Src, nil)
	}

	for key, tile := range s.Tiles {
		if tile == nil {
			continue
		}
		r := keyCanvasRect(key, tile.Bounds())
		target := image.Rect(
			int(math.Floor(r.X*zoom)),
			int(math.Floor(r.Y*zoom)),
			int(math.Ceil(r.MaxX()*zoom)),
			int(math.Ceil(r.MaxY()*zoom)),
		).Intersect(dst.Bounds())
		if target.Empty() {
			continue
		}
		xdraw.ApproxBiLinear.Scale(dst, target, tile, tile.Bounds(), xdraw.Src, nil)
	}
	return dst
}
