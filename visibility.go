package docview

// Buffer zone sizing, expressed as fractions of the visible canvas rect.
// Because the visible rect already shrinks as zoom grows, a margin
// proportional to it stays roughly constant in pages, not pixels.
const (
	// renderBufferFactor sizes the zone whose pages render immediately.
	renderBufferFactor = 0.5

	// elementBufferFactor sizes the zone whose pages get a surface (a
	// visible placeholder) even before rendering.
	elementBufferFactor = 1.5

	// keepBufferFactor sizes the zone inside which existing surfaces
	// survive, avoiding create/destroy thrash during fast scrolling.
	keepBufferFactor = 3.0
)

// bufferZones are the three concentric canvas-space rectangles around the
// viewport driving virtualization.
type bufferZones struct {
	visible Rect
	render  Rect
	element Rect
	keep    Rect
}

// computeBufferZones derives the buffer rectangles for a camera and
// viewport size.
func computeBufferZones(cam Camera, viewportW, viewportH float64) bufferZones {
	visible := cam.VisibleRect(viewportW, viewportH)
	return bufferZones{
		visible: visible,
		render:  visible.Expand(visible.W*renderBufferFactor, visible.H*renderBufferFactor),
		element: visible.Expand(visible.W*elementBufferFactor, visible.H*elementBufferFactor),
		keep:    visible.Expand(visible.W*keepBufferFactor, visible.H*keepBufferFactor),
	}
}

// visibleSet classifies pages into the buffer tiers for one camera state.
// Lists are ascending; every tier includes the tiers inside it (a visible
// page is also in render, element and keep).
type visibleSet struct {
	zones   bufferZones
	visible []int
	render  []int
	element []int
	keep    []int
}

// classifyPages computes the tiered page sets. Cost is proportional to the
// number of pages inside the keep buffer, never total pages: each tier is
// resolved by the layout's grid/axis arithmetic.
func classifyPages(layout *Layout, zones bufferZones) visibleSet {
	return visibleSet{
		zones:   zones,
		visible: layout.PagesIn(zones.visible),
		render:  layout.PagesIn(zones.render),
		element: layout.PagesIn(zones.element),
		keep:    layout.PagesIn(zones.keep),
	}
}

// inKeep reports whether a page is within the keep buffer.
func (v *visibleSet) inKeep(page int) bool {
	return containsPage(v.keep, page)
}

// inRender reports whether a page is within the render buffer.
func (v *visibleSet) inRender(page int) bool {
	return containsPage(v.render, page)
}

// isVisible reports whether a page intersects the viewport itself.
func (v *visibleSet) isVisible(page int) bool {
	return containsPage(v.visible, page)
}

// containsPage reports membership in an ascending page list using binary
// search.
func containsPage(pages []int, page int) bool {
	lo, hi := 0, len(pages)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case pages[mid] == page:
			return true
		case pages[mid] < page:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}
