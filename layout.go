package docview

import (
	"math"
	"sort"
)

// PageSize is the size of a page in canvas units at 100% zoom.
type PageSize struct {
	W, H float64
}

// DefaultPageSize is US Letter in PDF points, the fallback when a document
// does not report per-page sizes.
var DefaultPageSize = PageSize{W: 612, H: 792}

// PageLayout is the fixed position and size of a page on the virtual canvas
// at 100% zoom. Layouts never move once computed; only the camera does.
type PageLayout struct {
	// Page is the 1-based page number.
	Page int
	Rect
}

// LayoutConfig describes one layout pass.
type LayoutConfig struct {
	// Mode selects the layout axis and wrapping behavior.
	Mode DisplayMode

	// PageCount is the total number of pages in the document.
	PageCount int

	// PageSizes holds actual per-page sizes indexed by page-1. Nil or
	// short slices fall back to Default for the missing pages.
	PageSizes []PageSize

	// Default is the page size used when PageSizes has no entry.
	// Zero means DefaultPageSize.
	Default PageSize

	// Gap is the spacing between adjacent pages in canvas units.
	Gap float64

	// Padding is the margin around the whole canvas in canvas units.
	Padding float64

	// Columns is the column count for grid modes. Ignored by the scroll
	// modes. Values below 1 are treated as 1.
	Columns int
}

// Layout is the result of a layout pass: a fixed rectangle per page plus
// the overall canvas bounds. Page lookups are O(log rows) or better, never
// a scan over all pages, so documents with thousands of pages stay cheap.
//
// Layout is immutable after construction and safe for concurrent reads.
type Layout struct {
	mode    DisplayMode
	pages   []PageLayout
	bounds  Rect
	columns int
	rows    int
	gap     float64
	padding float64

	// cellW is the uniform grid cell width (grid modes).
	cellW float64

	// rowY[i] is the top edge of row i; rowY[rows] is the bottom of the
	// last row. Monotonically increasing, used for binary search.
	rowY []float64

	// axisEnd[i] is the far edge (along the layout axis) of page i+1 in
	// the scroll modes. Monotonically increasing.
	axisEnd []float64
}

// NewLayout computes page rectangles for the given configuration.
// Returns an empty layout when PageCount is zero or negative.
func NewLayout(cfg LayoutConfig) *Layout {
	if cfg.Default == (PageSize{}) {
		cfg.Default = DefaultPageSize
	}
	if cfg.Columns < 1 {
		cfg.Columns = 1
	}
	l := &Layout{
		mode:    cfg.Mode,
		gap:     cfg.Gap,
		padding: cfg.Padding,
		columns: cfg.Columns,
	}
	if cfg.PageCount <= 0 {
		return l
	}
	sizes := make([]PageSize, cfg.PageCount)
	for i := range sizes {
		if i < len(cfg.PageSizes) && cfg.PageSizes[i].W > 0 && cfg.PageSizes[i].H > 0 {
			sizes[i] = cfg.PageSizes[i]
		} else {
			sizes[i] = cfg.Default
		}
	}
	switch cfg.Mode {
	case ModeHorizontalScroll:
		l.layoutAxis(sizes, false)
	case ModeVerticalScroll:
		l.layoutAxis(sizes, true)
	default:
		l.layoutGrid(sizes, cfg.Columns)
	}
	return l
}

// layoutAxis places pages end-to-end along one axis, centered on the other.
func (l *Layout) layoutAxis(sizes []PageSize, vertical bool) {
	n := len(sizes)
	l.pages = make([]PageLayout, n)
	l.axisEnd = make([]float64, n)
	l.columns = 1
	l.rows = n

	maxCross := 0.0
	for _, s := range sizes {
		if vertical {
			maxCross = math.Max(maxCross, s.W)
		} else {
			maxCross = math.Max(maxCross, s.H)
		}
	}

	offset := l.padding
	for i, s := range sizes {
		var r Rect
		if vertical {
			r = Rect{X: l.padding + (maxCross-s.W)/2, Y: offset, W: s.W, H: s.H}
			offset += s.H
		} else {
			r = Rect{X: offset, Y: l.padding + (maxCross-s.H)/2, W: s.W, H: s.H}
			offset += s.W
		}
		l.pages[i] = PageLayout{Page: i + 1, Rect: r}
		l.axisEnd[i] = offset
		if i < n-1 {
			offset += l.gap
		}
	}
	if vertical {
		l.bounds = Rect{X: 0, Y: 0, W: maxCross + 2*l.padding, H: offset + l.padding}
	} else {
		l.bounds = Rect{X: 0, Y: 0, W: offset + l.padding, H: maxCross + 2*l.padding}
	}
}

// layoutGrid wraps pages after columns, row height = max page height in row.
func (l *Layout) layoutGrid(sizes []PageSize, columns int) {
	n := len(sizes)
	if columns > n {
		columns = n
	}
	l.columns = columns
	l.rows = (n + columns - 1) / columns
	l.pages = make([]PageLayout, n)
	l.rowY = make([]float64, l.rows+1)

	maxW := 0.0
	for _, s := range sizes {
		maxW = math.Max(maxW, s.W)
	}
	l.cellW = maxW + l.gap

	y := l.padding
	for row := 0; row < l.rows; row++ {
		l.rowY[row] = y
		first := row * columns
		last := min(first+columns, n)

		rowH := 0.0
		for i := first; i < last; i++ {
			rowH = math.Max(rowH, sizes[i].H)
		}
		for i := first; i < last; i++ {
			col := i - first
			s := sizes[i]
			l.pages[i] = PageLayout{
				Page: i + 1,
				Rect: Rect{
					X: l.padding + float64(col)*l.cellW + (maxW-s.W)/2,
					Y: y + (rowH-s.H)/2,
					W: s.W,
					H: s.H,
				},
			}
		}
		y += rowH
		if row < l.rows-1 {
			y += l.gap
		}
	}
	l.rowY[l.rows] = y

	l.bounds = Rect{
		X: 0,
		Y: 0,
		W: 2*l.padding + float64(columns)*l.cellW - l.gap,
		H: y + l.padding,
	}
}

// Bounds returns the overall canvas bounding box.
func (l *Layout) Bounds() Rect { return l.bounds }

// Mode returns the display mode the layout was computed for.
func (l *Layout) Mode() DisplayMode { return l.mode }

// Columns returns the effective column count.
func (l *Layout) Columns() int { return l.columns }

// Rows returns the number of rows.
func (l *Layout) Rows() int { return l.rows }

// PageCount returns the number of laid-out pages.
func (l *Layout) PageCount() int { return len(l.pages) }

// PageRect returns the canvas rectangle of a 1-based page number.
func (l *Layout) PageRect(page int) (Rect, bool) {
	if page < 1 || page > len(l.pages) {
		return Rect{}, false
	}
	return l.pages[page-1].Rect, true
}

// RowCol returns the grid position of a 1-based page number.
func (l *Layout) RowCol(page int) (row, col int) {
	if l.columns <= 0 {
		return 0, 0
	}
	idx := page - 1
	return idx / l.columns, idx % l.columns
}

// PageAtRowCol returns the 1-based page at a grid position, or 0 when the
// position is outside the document.
func (l *Layout) PageAtRowCol(row, col int) int {
	if row < 0 || col < 0 || col >= l.columns {
		return 0
	}
	page := row*l.columns + col + 1
	if page > len(l.pages) {
		return 0
	}
	return page
}

// rowRange returns the first and last row whose vertical extent intersects
// [y0, y1], using binary search over the monotonic row offsets.
func (l *Layout) rowRange(y0, y1 float64) (first, last int, ok bool) {
	if l.rows == 0 || y1 < l.rowY[0] || y0 > l.rowY[l.rows] {
		return 0, 0, false
	}
	first = sort.SearchFloat64s(l.rowY, y0) - 1
	if first < 0 {
		first = 0
	}
	last = sort.SearchFloat64s(l.rowY, y1)
	if last > l.rows-1 {
		last = l.rows - 1
	}
	return first, last, true
}

// PagesIn returns the 1-based page numbers whose layout rectangle
// intersects r, in ascending order. Cost is proportional to the number of
// returned pages (plus a binary search), never to the total page count.
func (l *Layout) PagesIn(r Rect) []int {
	if len(l.pages) == 0 || r.Empty() || !r.Intersects(l.bounds) {
		return nil
	}
	switch l.mode {
	case ModeVerticalScroll:
		return l.axisPagesIn(r.Y, r.MaxY(), r)
	case ModeHorizontalScroll:
		return l.axisPagesIn(r.X, r.MaxX(), r)
	default:
		return l.gridPagesIn(r)
	}
}

func (l *Layout) axisPagesIn(lo, hi float64, r Rect) []int {
	// First page whose far edge passes lo.
	first := sort.SearchFloat64s(l.axisEnd, lo)
	if first >= len(l.pages) {
		return nil
	}
	var out []int
	for i := first; i < len(l.pages); i++ {
		pr := l.pages[i].Rect
		if l.mode == ModeVerticalScroll {
			if pr.Y > hi {
				break
			}
		} else if pr.X > hi {
			break
		}
		if pr.Intersects(r) {
			out = append(out, i+1)
		}
	}
	return out
}

func (l *Layout) gridPagesIn(r Rect) []int {
	firstRow, lastRow, ok := l.rowRange(r.Y, r.MaxY())
	if !ok {
		return nil
	}
	firstCol := int(math.Floor((r.X - l.padding) / l.cellW))
	lastCol := int(math.Floor((r.MaxX() - l.padding) / l.cellW))
	firstCol = max(firstCol, 0)
	lastCol = min(lastCol, l.columns-1)
	if firstCol > lastCol {
		return nil
	}
	var out []int
	for row := firstRow; row <= lastRow; row++ {
		for col := firstCol; col <= lastCol; col++ {
			page := l.PageAtRowCol(row, col)
			if page == 0 {
				continue
			}
			if l.pages[page-1].Intersects(r) {
				out = append(out, page)
			}
		}
	}
	return out
}

// NearestPage returns the 1-based page whose rectangle is closest to the
// canvas point p (the page containing p when one does). Returns 0 for an
// empty layout.
func (l *Layout) NearestPage(p Point) int {
	n := len(l.pages)
	if n == 0 {
		return 0
	}
	switch l.mode {
	case ModeVerticalScroll:
		i := sort.SearchFloat64s(l.axisEnd, p.Y)
		return min(i, n-1) + 1
	case ModeHorizontalScroll:
		i := sort.SearchFloat64s(l.axisEnd, p.X)
		return min(i, n-1) + 1
	default:
		row := sort.SearchFloat64s(l.rowY, p.Y) - 1
		row = max(min(row, l.rows-1), 0)
		col := int(math.Floor((p.X - l.padding) / l.cellW))
		col = max(min(col, l.columns-1), 0)
		if page := l.PageAtRowCol(row, col); page != 0 {
			return page
		}
		// Short last row: clamp to its final page.
		return n
	}
}

// AutoGridColumns returns how many base-width pages fit the available
// screen width at the given zoom. Used by auto-grid mode to decide when a
// zoom change requires a relayout.
func AutoGridColumns(viewportW, zoom float64, base PageSize, gap, padding float64, pageCount int) int {
	if zoom <= 0 || viewportW <= 0 || base.W <= 0 {
		return 1
	}
	avail := viewportW/zoom - 2*padding + gap
	cols := int(math.Floor(avail / (base.W + gap)))
	return max(min(cols, pageCount), 1)
}
