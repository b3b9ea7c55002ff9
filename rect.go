package docview

// Rect is an axis-aligned rectangle in canvas space.
// X, Y is the top-left corner.
type Rect struct {
	X, Y, W, H float64
}

// R is a convenience function to create a Rect.
func R(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.W }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Center returns the center point.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Intersects reports whether r and s overlap.
// Touching edges do not count as overlap.
func (r Rect) Intersects(s Rect) bool {
	if r.Empty() || s.Empty() {
		return false
	}
	return r.X < s.MaxX() && s.X < r.MaxX() &&
		r.Y < s.MaxY() && s.Y < r.MaxY()
}

// Contains reports whether the point p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.MaxX() && p.Y >= r.Y && p.Y < r.MaxY()
}

// Inset returns r shrunk by d on every side. A negative d grows the
// rectangle. The result is clamped to zero size, never inverted.
func (r Rect) Inset(d float64) Rect {
	out := Rect{X: r.X + d, Y: r.Y + d, W: r.W - 2*d, H: r.H - 2*d}
	if out.W < 0 {
		out.X = r.X + r.W/2
		out.W = 0
	}
	if out.H < 0 {
		out.Y = r.Y + r.H/2
		out.H = 0
	}
	return out
}

// Expand returns r grown by dx horizontally and dy vertically on each side.
func (r Rect) Expand(dx, dy float64) Rect {
	return Rect{X: r.X - dx, Y: r.Y - dy, W: r.W + 2*dx, H: r.H + 2*dy}
}

// Union returns the smallest rectangle containing both r and s.
// An empty rectangle does not contribute.
func (r Rect) Union(s Rect) Rect {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	x := min(r.X, s.X)
	y := min(r.Y, s.Y)
	return Rect{
		X: x,
		Y: y,
		W: max(r.MaxX(), s.MaxX()) - x,
		H: max(r.MaxY(), s.MaxY()) - y,
	}
}
