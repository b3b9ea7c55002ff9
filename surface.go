package docview

import "image"

// PageSurface is the per-page render target the host composites. Surfaces
// exist only for pages inside the element buffer, so a placeholder is
// visible the instant a page scrolls near, and are destroyed once the page
// leaves the keep buffer (unless a render is still pending for it).
//
// The engine owns all surfaces; hosts read them during their draw pass and
// must not mutate them.
type PageSurface struct {
	// Page is the 1-based page number.
	Page int

	// Rect is the page's canvas rectangle at 100% zoom.
	Rect Rect

	// Image is the best page bitmap delivered so far. Nil means the
	// surface is still a placeholder.
	Image image.Image

	// ImageScale is the effective scale Image was rendered at, 0 while
	// placeholder.
	ImageScale float64

	// Text is the page's text layer, when the provider has one.
	Text *TextLayer

	// Tiles holds high-zoom tile overlays keyed by tile grid position,
	// populated only while the tile path is active.
	Tiles map[TileKey]image.Image
}

// Rendered reports whether the surface has any displayable content.
func (s *PageSurface) Rendered() bool {
	return s != nil && (s.Image != nil || len(s.Tiles) > 0)
}

// reset clears a surface for reuse by the pool.
func (s *PageSurface) reset() {
	s.Page = 0
	s.Rect = Rect{}
	s.Image = nil
	s.ImageScale = 0
	s.Text = nil
	s.Tiles = nil
}

// surfacePool owns the live page surfaces and a small free list so rapid
// scrolling re-uses surface objects instead of allocating.
type surfacePool struct {
	live map[int]*PageSurface
	free []*PageSurface

	// created and destroyed count lifecycle events for Stats.
	created   uint64
	destroyed uint64
}

func newSurfacePool() *surfacePool {
	return &surfacePool{live: make(map[int]*PageSurface)}
}

// get returns the live surface for a page, or nil.
func (p *surfacePool) get(page int) *PageSurface {
	return p.live[page]
}

// obtain returns the live surface for a page, creating one if needed.
func (p *surfacePool) obtain(page int, rect Rect) *PageSurface {
	if s := p.live[page]; s != nil {
		return s
	}
	var s *PageSurface
	if n := len(p.free); n > 0 {
		s = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		s = &PageSurface{}
	}
	s.Page = page
	s.Rect = rect
	p.live[page] = s
	p.created++
	return s
}

// destroy removes a page's surface and returns the object to the free
// list. No-op when the page has no surface.
func (p *surfacePool) destroy(page int) {
	s := p.live[page]
	if s == nil {
		return
	}
	delete(p.live, page)
	s.reset()
	if len(p.free) < 16 {
		p.free = append(p.free, s)
	}
	p.destroyed++
}

// flush destroys every surface (mode switches, Destroy).
func (p *surfacePool) flush() {
	for page := range p.live {
		p.destroy(page)
	}
}

// count returns the number of live surfaces.
func (p *surfacePool) count() int {
	return len(p.live)
}

// pages returns the live page numbers in unspecified order.
func (p *surfacePool) pages() []int {
	out := make([]int, 0, len(p.live))
	for page := range p.live {
		out = append(out, page)
	}
	return out
}
