package docview

import (
	"math"
	"testing"
)

func TestLayoutVerticalScroll(t *testing.T) {
	l := NewLayout(LayoutConfig{
		Mode:      ModeVerticalScroll,
		PageCount: 5,
		Gap:       20,
		Padding:   40,
	})

	if l.PageCount() != 5 {
		t.Fatalf("PageCount = %d, want 5", l.PageCount())
	}

	// Pages must be monotonically increasing along Y and never overlap.
	prevBottom := -math.MaxFloat64
	for page := 1; page <= 5; page++ {
		r, ok := l.PageRect(page)
		if !ok {
			t.Fatalf("PageRect(%d) not found", page)
		}
		if r.W != 612 || r.H != 792 {
			t.Errorf("page %d size = %vx%v, want default 612x792", page, r.W, r.H)
		}
		if r.Y < prevBottom {
			t.Errorf("page %d overlaps previous (y=%v, prev bottom=%v)", page, r.Y, prevBottom)
		}
		prevBottom = r.MaxY()
	}

	wantH := 40 + 5*792 + 4*20 + 40.0
	if got := l.Bounds().H; math.Abs(got-wantH) > 1e-9 {
		t.Errorf("canvas height = %v, want %v", got, wantH)
	}
}

func TestLayoutHorizontalScroll(t *testing.T) {
	l := NewLayout(LayoutConfig{
		Mode:      ModeHorizontalScroll,
		PageCount: 3,
		Gap:       10,
		Padding:   0,
	})

	prevRight := -math.MaxFloat64
	for page := 1; page <= 3; page++ {
		r, _ := l.PageRect(page)
		if r.X < prevRight {
			t.Errorf("page %d overlaps previous on X", page)
		}
		prevRight = r.MaxX()
	}
	wantW := 3*612 + 2*10.0
	if got := l.Bounds().W; math.Abs(got-wantW) > 1e-9 {
		t.Errorf("canvas width = %v, want %v", got, wantW)
	}
}

func TestLayoutGridWrapping(t *testing.T) {
	l := NewLayout(LayoutConfig{
		Mode:      ModeCanvas,
		PageCount: 10,
		Columns:   3,
		Gap:       16,
		Padding:   24,
	})

	if l.Columns() != 3 {
		t.Errorf("Columns = %d, want 3", l.Columns())
	}
	if l.Rows() != 4 {
		t.Errorf("Rows = %d, want 4", l.Rows())
	}

	// Page 4 starts row 1, same X as page 1.
	r1, _ := l.PageRect(1)
	r4, _ := l.PageRect(4)
	if r1.X != r4.X {
		t.Errorf("page 4 X = %v, want %v (column 0)", r4.X, r1.X)
	}
	if r4.Y <= r1.MaxY() {
		t.Errorf("page 4 must be below page 1")
	}
}

func TestLayoutGridRowHeightIsMaxInRow(t *testing.T) {
	sizes := []PageSize{
		{W: 600, H: 700}, {W: 600, H: 900}, // row 0: tall second page
		{W: 600, H: 800}, {W: 600, H: 800}, // row 1
	}
	l := NewLayout(LayoutConfig{
		Mode:      ModeCanvas,
		PageCount: 4,
		PageSizes: sizes,
		Columns:   2,
	})

	r1, _ := l.PageRect(1)
	r3, _ := l.PageRect(3)
	// Row 0 height is 900; page 3 starts at or below row 0's full extent.
	if r3.Y < r1.Y+900 {
		t.Errorf("row 1 starts at %v, want >= %v (row height = max in row)", r3.Y, r1.Y+900)
	}
}

func TestLayoutRowColRoundTrip(t *testing.T) {
	l := NewLayout(LayoutConfig{Mode: ModeCanvas, PageCount: 10, Columns: 3})
	for page := 1; page <= 10; page++ {
		row, col := l.RowCol(page)
		if got := l.PageAtRowCol(row, col); got != page {
			t.Errorf("PageAtRowCol(RowCol(%d)) = %d", page, got)
		}
	}
	if got := l.PageAtRowCol(3, 1); got != 0 {
		t.Errorf("position past last page: got %d, want 0", got)
	}
}

func TestLayoutPagesIn(t *testing.T) {
	l := NewLayout(LayoutConfig{
		Mode:      ModeVerticalScroll,
		PageCount: 945,
		Gap:       20,
		Padding:   40,
	})

	// A viewport-sized window deep inside the document.
	r10, _ := l.PageRect(500)
	got := l.PagesIn(Rect{X: 0, Y: r10.Y, W: l.Bounds().W, H: 1000})

	if len(got) == 0 {
		t.Fatal("no pages found in window")
	}
	if len(got) > 4 {
		t.Errorf("window of 1000 canvas units returned %d pages, want <= 4", len(got))
	}
	for _, p := range got {
		pr, _ := l.PageRect(p)
		if !pr.Intersects(Rect{X: 0, Y: r10.Y, W: l.Bounds().W, H: 1000}) {
			t.Errorf("page %d does not intersect the window", p)
		}
	}
	// Completeness: neighbors just outside must not be included.
	if got[0] != 500 {
		t.Errorf("first intersecting page = %d, want 500", got[0])
	}
}

func TestLayoutPagesInGrid(t *testing.T) {
	l := NewLayout(LayoutConfig{
		Mode:      ModeCanvas,
		PageCount: 100,
		Columns:   10,
		Gap:       16,
		Padding:   24,
	})

	r45, _ := l.PageRect(45)
	got := l.PagesIn(r45.Expand(20, 20))

	// Expanding past the 16-unit gap touches the 3x3 neighborhood of 45.
	want := map[int]bool{34: true, 35: true, 36: true, 44: true, 45: true, 46: true, 54: true, 55: true, 56: true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want 3x3 neighborhood of 45", got)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected page %d in neighborhood", p)
		}
	}
}

func TestLayoutPagesInOutside(t *testing.T) {
	l := NewLayout(LayoutConfig{Mode: ModeVerticalScroll, PageCount: 10})
	if got := l.PagesIn(R(-5000, -5000, 100, 100)); got != nil {
		t.Errorf("rect outside canvas returned %v", got)
	}
}

func TestLayoutNearestPage(t *testing.T) {
	l := NewLayout(LayoutConfig{Mode: ModeVerticalScroll, PageCount: 50, Gap: 20, Padding: 40})

	tests := []struct {
		name string
		p    Point
		want int
	}{
		{"inside page 1", Point{X: 300, Y: 100}, 1},
		{"above canvas clamps to 1", Point{X: 300, Y: -1e6}, 1},
		{"below canvas clamps to last", Point{X: 300, Y: 1e9}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.NearestPage(tt.p); got != tt.want {
				t.Errorf("NearestPage(%+v) = %d, want %d", tt.p, got, tt.want)
			}
		})
	}

	r25, _ := l.PageRect(25)
	if got := l.NearestPage(r25.Center()); got != 25 {
		t.Errorf("NearestPage(center of 25) = %d", got)
	}
}

func TestLayoutEmpty(t *testing.T) {
	l := NewLayout(LayoutConfig{Mode: ModeVerticalScroll, PageCount: 0})
	if l.PageCount() != 0 {
		t.Errorf("PageCount = %d, want 0", l.PageCount())
	}
	if _, ok := l.PageRect(1); ok {
		t.Error("PageRect(1) on empty layout should fail")
	}
	if got := l.NearestPage(Point{}); got != 0 {
		t.Errorf("NearestPage on empty layout = %d, want 0", got)
	}
}

func TestAutoGridColumns(t *testing.T) {
	base := PageSize{W: 612, H: 792}
	tests := []struct {
		name      string
		viewportW float64
		zoom      float64
		want      int
	}{
		{"one column at 100%", 1000, 1.0, 1},
		{"two columns zoomed out", 1000, 0.5, 3},
		{"many columns far out", 1000, 0.1, 15},
		{"never zero", 100, 4.0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AutoGridColumns(tt.viewportW, tt.zoom, base, 20, 40, 100)
			if got != tt.want {
				t.Errorf("AutoGridColumns(vw=%v z=%v) = %d, want %d", tt.viewportW, tt.zoom, got, tt.want)
			}
		})
	}

	// Column count is capped by the page count.
	if got := AutoGridColumns(1e6, 0.01, base, 20, 40, 12); got != 12 {
		t.Errorf("columns should cap at page count: got %d", got)
	}
}
