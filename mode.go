package docview

// DisplayMode determines the layout axis, pan freedom, and zoom bounds of
// the viewport. Mode changes trigger a full relayout and a surface-pool
// flush; the mode is immutable during a single camera operation.
type DisplayMode int

const (
	// ModePaginated shows one page (or spread) at a time, centered.
	// Panning is disabled; navigation moves between pages.
	ModePaginated DisplayMode = iota

	// ModeHorizontalScroll places pages end-to-end along the X axis.
	ModeHorizontalScroll

	// ModeVerticalScroll places pages end-to-end along the Y axis.
	ModeVerticalScroll

	// ModeAutoGrid wraps pages into as many columns as fit the screen
	// width at the current zoom, reflowing as the zoom changes.
	ModeAutoGrid

	// ModeCanvas lays all pages out on a free-form grid with free panning
	// on both axes and the widest zoom range.
	ModeCanvas
)

// String returns the mode name used in logs and CLI flags.
func (m DisplayMode) String() string {
	switch m {
	case ModePaginated:
		return "paginated"
	case ModeHorizontalScroll:
		return "horizontal-scroll"
	case ModeVerticalScroll:
		return "vertical-scroll"
	case ModeAutoGrid:
		return "auto-grid"
	case ModeCanvas:
		return "canvas"
	default:
		return "unknown"
	}
}

// ParseDisplayMode converts a mode name (as produced by String) back to a
// DisplayMode. Returns ModeVerticalScroll and false for unknown names.
func ParseDisplayMode(s string) (DisplayMode, bool) {
	switch s {
	case "paginated":
		return ModePaginated, true
	case "horizontal-scroll":
		return ModeHorizontalScroll, true
	case "vertical-scroll":
		return ModeVerticalScroll, true
	case "auto-grid":
		return ModeAutoGrid, true
	case "canvas":
		return ModeCanvas, true
	default:
		return ModeVerticalScroll, false
	}
}

// ZoomBounds returns the zoom constraints for the mode.
func (m DisplayMode) ZoomBounds() ZoomBounds {
	switch m {
	case ModePaginated:
		return ZoomBounds{Min: 0.5, Max: 8}
	case ModeHorizontalScroll, ModeVerticalScroll:
		return ZoomBounds{Min: 0.25, Max: 8}
	case ModeAutoGrid:
		return ZoomBounds{Min: 0.05, Max: 8}
	case ModeCanvas:
		return ZoomBounds{Min: 0.05, Max: 32}
	default:
		return ZoomBounds{Min: 0.25, Max: 8}
	}
}

// IsGrid reports whether pages wrap into rows and columns in this mode.
func (m DisplayMode) IsGrid() bool {
	return m == ModePaginated || m == ModeAutoGrid || m == ModeCanvas
}

// AllowsPan reports whether pan gestures move the camera at all.
// Paginated mode forces centering every frame regardless of input.
func (m DisplayMode) AllowsPan() bool {
	return m != ModePaginated
}

// PanAxis describes which axes a pan gesture may move the camera along.
type PanAxis int

const (
	// PanNone disables panning entirely.
	PanNone PanAxis = iota
	// PanHorizontal constrains panning to the X axis.
	PanHorizontal
	// PanVertical constrains panning to the Y axis.
	PanVertical
	// PanFree allows panning on both axes.
	PanFree
)

// PanAxis returns the default pan constraint for the mode. Scroll modes
// are axis-locked; the lock is lifted by the gesture controller when the
// current page is zoomed beyond the viewport on the cross axis.
func (m DisplayMode) PanAxis() PanAxis {
	switch m {
	case ModePaginated:
		return PanNone
	case ModeHorizontalScroll:
		return PanHorizontal
	case ModeVerticalScroll:
		return PanVertical
	default:
		return PanFree
	}
}
