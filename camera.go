package docview

import "math"

// Camera is the {x, y, zoom} transform mapping canvas space to screen space:
//
//	screen = (canvas + {X, Y}) * Zoom
//
// Camera is a pure value type. The engine owns its camera exclusively and
// mutates it only through the transform functions below, so every zoom entry
// point (wheel, pinch, keyboard, fit-to-page) shares one focal-point
// preserving implementation.
type Camera struct {
	// X, Y is the canvas-space translation.
	X, Y float64

	// Zoom is the positive zoom factor. 1 means 100%.
	Zoom float64
}

// ZoomBounds constrains the zoom factor of a camera operation.
type ZoomBounds struct {
	Min, Max float64
}

// Clamp returns z limited to [Min, Max].
func (b ZoomBounds) Clamp(z float64) float64 {
	if z < b.Min {
		return b.Min
	}
	if z > b.Max {
		return b.Max
	}
	return z
}

// Pan moves the camera by a screen-space delta. The delta is divided by the
// current zoom so panning feels 1:1 at every zoom level.
func (c Camera) Pan(dxScreen, dyScreen float64) Camera {
	c.X += dxScreen / c.Zoom
	c.Y += dyScreen / c.Zoom
	return c
}

// ZoomAt returns the camera zoomed to newZoom (clamped to bounds) such that
// the canvas point currently under the screen point focal stays under it:
//
//	focal = (canvas + {X, Y}) * Zoom    holds before and after.
func (c Camera) ZoomAt(focal Point, newZoom float64, bounds ZoomBounds) Camera {
	z := bounds.Clamp(newZoom)
	if z == c.Zoom {
		return c
	}
	// Canvas point under the focal screen point at the old zoom.
	cx := focal.X/c.Zoom - c.X
	cy := focal.Y/c.Zoom - c.Y
	// Solve the translation that puts it back under focal at the new zoom.
	c.X = focal.X/z - cx
	c.Y = focal.Y/z - cy
	c.Zoom = z
	return c
}

// ZoomBy is ZoomAt with a multiplicative delta, the natural form for wheel
// and pinch input.
func (c Camera) ZoomBy(focal Point, factor float64, bounds ZoomBounds) Camera {
	return c.ZoomAt(focal, c.Zoom*factor, bounds)
}

// FitBox returns the camera that centers and scales box to fit within a
// viewport of viewportW x viewportH minus padding on every side, without
// exceeding the zoom bounds.
func (c Camera) FitBox(box Rect, viewportW, viewportH, padding float64, bounds ZoomBounds) Camera {
	if box.Empty() || viewportW <= 0 || viewportH <= 0 {
		return c
	}
	availW := viewportW - 2*padding
	availH := viewportH - 2*padding
	if availW <= 0 || availH <= 0 {
		availW, availH = viewportW, viewportH
	}
	z := bounds.Clamp(math.Min(availW/box.W, availH/box.H))
	return Camera{
		X:    (viewportW/z-box.W)/2 - box.X,
		Y:    (viewportH/z-box.H)/2 - box.Y,
		Zoom: z,
	}
}

// Lerp linearly interpolates between c and target component-wise.
// t is clamped to [0, 1]: t=0 returns c, t=1 returns target.
func (c Camera) Lerp(target Camera, t float64) Camera {
	if t <= 0 {
		return c
	}
	if t >= 1 {
		return target
	}
	return Camera{
		X:    c.X + (target.X-c.X)*t,
		Y:    c.Y + (target.Y-c.Y)*t,
		Zoom: c.Zoom + (target.Zoom-c.Zoom)*t,
	}
}

// Matrix returns the 2D affine transform equivalent to
// translate(x*zoom, y*zoom) followed by scale(zoom). The host applies it
// once per frame to the whole canvas, never per page.
func (c Camera) Matrix() Matrix {
	return Translate(c.X*c.Zoom, c.Y*c.Zoom).Multiply(Scale(c.Zoom, c.Zoom))
}

// ScreenToCanvas converts a screen-space point to canvas space.
func (c Camera) ScreenToCanvas(p Point) Point {
	return Point{X: p.X/c.Zoom - c.X, Y: p.Y/c.Zoom - c.Y}
}

// CanvasToScreen converts a canvas-space point to screen space.
func (c Camera) CanvasToScreen(p Point) Point {
	return Point{X: (p.X + c.X) * c.Zoom, Y: (p.Y + c.Y) * c.Zoom}
}

// VisibleRect returns the canvas-space rectangle covered by a viewport of
// the given screen size.
func (c Camera) VisibleRect(viewportW, viewportH float64) Rect {
	return Rect{
		X: -c.X,
		Y: -c.Y,
		W: viewportW / c.Zoom,
		H: viewportH / c.Zoom,
	}
}
