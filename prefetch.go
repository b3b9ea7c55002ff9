package docview

import "math"

// Prefetch tuning.
const (
	// prefetchMinRadius and prefetchMaxRadius bound the adaptive
	// prefetch distance in pages (linear) or rings (grid).
	prefetchMinRadius = 1
	prefetchMaxRadius = 5

	// prefetchVelocityStep is the scroll speed, in canvas units per
	// second, that widens the prefetch radius by one page.
	prefetchVelocityStep = 1500.0
)

// A PrefetchStrategy picks pages to fetch speculatively around the
// current position. Returned pages may be out of range or duplicates of
// already-cached pages; the scheduler filters them.
type PrefetchStrategy interface {
	// Pages returns prefetch candidates in priority order. velocity is
	// the recent scroll velocity in canvas units per second; strategies
	// use it to widen the radius and bias toward the travel direction.
	Pages(layout *Layout, current int, velocity Point) []int
}

// prefetchRadius maps scroll speed to a prefetch radius.
func prefetchRadius(speed float64) int {
	r := prefetchMinRadius + int(speed/prefetchVelocityStep)
	if r > prefetchMaxRadius {
		return prefetchMaxRadius
	}
	return r
}

// LinearPrefetch fetches pages on either side of the current page,
// weighted toward the travel direction. It suits the paginated and
// scroll display modes.
type LinearPrefetch struct{}

// Pages implements PrefetchStrategy.
func (LinearPrefetch) Pages(layout *Layout, current int, velocity Point) []int {
	n := layout.PageCount()
	if n == 0 {
		return nil
	}
	speed := velocity.Length()
	radius := prefetchRadius(speed)

	// forward is +1 when scrolling toward higher pages. Content moves
	// opposite to the camera, so positive velocity on the layout axis
	// means earlier pages are coming into view.
	forward := 1
	axis := velocity.Y
	if layout.Mode() == ModeHorizontalScroll {
		axis = velocity.X
	}
	if axis > 0 {
		forward = -1
	}

	// Interleave ahead and behind, ahead first, nearest first.
	out := make([]int, 0, 2*radius)
	for d := 1; d <= radius; d++ {
		if p := current + forward*d; p >= 1 && p <= n {
			out = append(out, p)
		}
		// Behind the travel direction only half as far.
		if d <= (radius+1)/2 {
			if p := current - forward*d; p >= 1 && p <= n {
				out = append(out, p)
			}
		}
	}
	return out
}

// SpatialPrefetch fetches pages in expanding rings around the current
// page's grid cell. It suits the auto-grid and canvas display modes,
// where neighbors live in two dimensions.
type SpatialPrefetch struct{}

// Pages implements PrefetchStrategy.
func (SpatialPrefetch) Pages(layout *Layout, current int, velocity Point) []int {
	n := layout.PageCount()
	if n == 0 {
		return nil
	}
	if layout.Columns() <= 1 {
		// Degenerate single-column grid behaves like a vertical scroll.
		return LinearPrefetch{}.Pages(layout, current, velocity)
	}

	row, col := layout.RowCol(current)
	radius := prefetchRadius(velocity.Length())

	// Bias: shift the ring center one cell toward the travel direction
	// when moving fast. Camera motion is opposite to content motion.
	if velocity.Length() > prefetchVelocityStep {
		if math.Abs(velocity.X) > math.Abs(velocity.Y) {
			if velocity.X > 0 {
				col--
			} else {
				col++
			}
		} else if velocity.Y > 0 {
			row--
		} else {
			row++
		}
	}

	out := make([]int, 0, (2*radius+1)*(2*radius+1)-1)
	for ring := 1; ring <= radius; ring++ {
		for dr := -ring; dr <= ring; dr++ {
			for dc := -ring; dc <= ring; dc++ {
				// Only the perimeter of this ring; inner cells were
				// emitted by smaller rings.
				if max(abs(dr), abs(dc)) != ring {
					continue
				}
				p := layout.PageAtRowCol(row+dr, col+dc)
				if p >= 1 && p <= n && p != current {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// strategyFor returns the prefetch strategy suited to a display mode.
func strategyFor(mode DisplayMode) PrefetchStrategy {
	if mode.IsGrid() {
		return SpatialPrefetch{}
	}
	return LinearPrefetch{}
}
