package docview

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"
)

// fakeProvider renders solid rectangles and records every call.
type fakeProvider struct {
	mu      sync.Mutex
	renders []int
	texts   []int

	// errFor returns per-page errors.
	errFor map[int]error

	// gate, when non-nil, blocks PageImage until closed.
	gate chan struct{}
}

func (p *fakeProvider) PageImage(ctx context.Context, page int, opts RenderOptions) (PageImage, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return PageImage{}, ctx.Err()
		}
	}
	p.mu.Lock()
	p.renders = append(p.renders, page)
	err := p.errFor[page]
	p.mu.Unlock()
	if err != nil {
		return PageImage{}, err
	}
	return PageImage{
		Image: image.NewRGBA(image.Rect(0, 0, 61, 79)),
		Scale: opts.Scale,
	}, nil
}

func (p *fakeProvider) PageText(ctx context.Context, page int) (TextLayer, error) {
	p.mu.Lock()
	p.texts = append(p.texts, page)
	p.mu.Unlock()
	return TextLayer{Runs: []TextRun{{Text: fmt.Sprintf("page %d", page)}}}, nil
}

func (p *fakeProvider) renderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.renders)
}

// manualFrames is a FrameScheduler stepped by hand from tests.
type manualFrames struct {
	mu   sync.Mutex
	step func(time.Time)
}

func (m *manualFrames) Start(step func(now time.Time)) (stop func()) {
	m.mu.Lock()
	m.step = step
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.step = nil
		m.mu.Unlock()
	}
}

func (m *manualFrames) tick(now time.Time) {
	m.mu.Lock()
	step := m.step
	m.mu.Unlock()
	if step != nil {
		step(now)
	}
}

func newTestEngine(t *testing.T, pageCount int, opts ...Option) (*Engine, *fakeProvider) {
	t.Helper()
	provider := &fakeProvider{}
	opts = append([]Option{WithFrameScheduler(&manualFrames{})}, opts...)
	e, err := New(provider, pageCount, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Destroy)
	if err := e.SetViewport(800, 600); err != nil {
		t.Fatalf("SetViewport: %v", err)
	}
	return e, provider
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, 10); err == nil {
		t.Error("New(nil provider) succeeded")
	}
	if _, err := New(&fakeProvider{}, -1); err == nil {
		t.Error("New with negative page count succeeded")
	}
	e, err := New(&fakeProvider{}, 0)
	if err != nil {
		t.Fatalf("New with zero pages: %v", err)
	}
	defer e.Destroy()
	if e.CurrentPage() != 0 {
		t.Errorf("CurrentPage = %d for empty document, want 0", e.CurrentPage())
	}
}

func TestGoToPage(t *testing.T) {
	e, _ := newTestEngine(t, 100)

	if err := e.GoToPage(42); err != nil {
		t.Fatalf("GoToPage(42): %v", err)
	}
	if got := e.CurrentPage(); got != 42 {
		t.Errorf("CurrentPage = %d, want 42", got)
	}

	t.Run("out of range", func(t *testing.T) {
		if err := e.GoToPage(0); err == nil {
			t.Error("GoToPage(0) succeeded")
		}
		if err := e.GoToPage(101); err == nil {
			t.Error("GoToPage(101) succeeded")
		}
		if got := e.CurrentPage(); got != 42 {
			t.Errorf("failed jump moved current page to %d", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		before := e.Camera()
		if err := e.GoToPage(42); err != nil {
			t.Fatal(err)
		}
		if got := e.Camera(); got != before {
			t.Errorf("repeat jump moved camera from %+v to %+v", before, got)
		}
	})
}

func TestVirtualizationBounded(t *testing.T) {
	// A long document must never materialize more surfaces than the
	// keep buffer holds, regardless of where the camera lands.
	e, _ := newTestEngine(t, 945)

	for _, page := range []int{1, 500, 945, 12} {
		if err := e.GoToPage(page); err != nil {
			t.Fatalf("GoToPage(%d): %v", page, err)
		}
		surfaces := e.Surfaces()
		if len(surfaces) == 0 {
			t.Fatalf("no surfaces after jump to %d", page)
		}
		if len(surfaces) > 12 {
			t.Errorf("jump to %d left %d surfaces, want at most 12", page, len(surfaces))
		}
		found := false
		for _, s := range surfaces {
			if s.Page == page {
				found = true
			}
		}
		if !found {
			t.Errorf("jump to %d produced no surface for it", page)
		}
	}
}

func TestPaginatedPanLocked(t *testing.T) {
	e, _ := newTestEngine(t, 10, WithDisplayMode(ModePaginated))
	if err := e.GoToPage(3); err != nil {
		t.Fatal(err)
	}
	before := e.Camera()
	if err := e.Pan(120, -75); err != nil {
		t.Fatal(err)
	}
	if got := e.Camera(); got != before {
		t.Errorf("pan moved paginated camera from %+v to %+v", before, got)
	}
}

func TestScrollPanAxisLock(t *testing.T) {
	// Canvas narrower than the viewport: vertical scroll locks X.
	e, _ := newTestEngine(t, 50)
	if err := e.GoToPage(10); err != nil {
		t.Fatal(err)
	}
	before := e.Camera()
	if err := e.Pan(100, -50); err != nil {
		t.Fatal(err)
	}
	after := e.Camera()
	if after.X != before.X {
		t.Errorf("cross-axis pan moved X from %v to %v", before.X, after.X)
	}
	if after.Y != before.Y-50 {
		t.Errorf("Y = %v, want %v", after.Y, before.Y-50)
	}
}

func TestZoomClampedToModeBounds(t *testing.T) {
	e, _ := newTestEngine(t, 10)

	if err := e.SetZoom(100); err != nil {
		t.Fatal(err)
	}
	if got := e.Zoom(); got != 8 {
		t.Errorf("Zoom = %v after overshoot, want 8", got)
	}
	if err := e.SetZoom(0.001); err != nil {
		t.Fatal(err)
	}
	if got := e.Zoom(); got != 0.25 {
		t.Errorf("Zoom = %v after undershoot, want 0.25", got)
	}
}

func TestZoomChangeSignal(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	var got []float64
	unsub := e.ZoomChanged.Subscribe(func(ev ZoomChangeEvent) {
		got = append(got, ev.Zoom)
	})
	defer unsub()

	e.SetZoom(2)
	e.SetZoom(2) // no change, no event
	e.SetZoom(4)
	want := []float64{2, 4}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPageChangeSignal(t *testing.T) {
	e, _ := newTestEngine(t, 100)
	var got []int
	unsub := e.PageChanged.Subscribe(func(ev PageChangeEvent) {
		got = append(got, ev.Page)
	})
	defer unsub()

	e.GoToPage(5)
	e.GoToPage(5)
	e.NextPage()
	if len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("page events = %v, want [5 6]", got)
	}
}

func TestModeSwitchPreservesPage(t *testing.T) {
	e, _ := newTestEngine(t, 100)
	if err := e.GoToPage(42); err != nil {
		t.Fatal(err)
	}
	if err := e.SetDisplayMode(ModeAutoGrid); err != nil {
		t.Fatal(err)
	}
	if got := e.CurrentPage(); got != 42 {
		t.Errorf("CurrentPage = %d after mode switch, want 42", got)
	}
	found := false
	for _, s := range e.Surfaces() {
		if s.Page == 42 {
			found = true
		}
	}
	if !found {
		t.Error("page 42 has no surface after mode switch")
	}
	if got := e.Mode(); got != ModeAutoGrid {
		t.Errorf("Mode = %v, want auto-grid", got)
	}
}

func TestSetDisplayModeRejectsUnknown(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	if err := e.SetDisplayMode(DisplayMode(99)); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestNextPrevPage(t *testing.T) {
	e, _ := newTestEngine(t, 3)

	e.GoToPage(3)
	if err := e.NextPage(); err != nil {
		t.Fatal(err)
	}
	if got := e.CurrentPage(); got != 3 {
		t.Errorf("NextPage past end moved to %d", got)
	}
	e.GoToPage(1)
	if err := e.PrevPage(); err != nil {
		t.Fatal(err)
	}
	if got := e.CurrentPage(); got != 1 {
		t.Errorf("PrevPage past start moved to %d", got)
	}
}

func TestSpreadColumnsStep(t *testing.T) {
	e, _ := newTestEngine(t, 20,
		WithDisplayMode(ModePaginated), WithSpreadColumns(2))
	e.GoToPage(1)
	if err := e.NextPage(); err != nil {
		t.Fatal(err)
	}
	if got := e.CurrentPage(); got != 3 {
		t.Errorf("CurrentPage = %d after spread next, want 3", got)
	}
}

func TestRenderCompletion(t *testing.T) {
	e, provider := newTestEngine(t, 20)
	if err := e.GoToPage(5); err != nil {
		t.Fatal(err)
	}

	eventually(t, "page 5 bitmap", func() bool {
		for _, s := range e.Surfaces() {
			if s.Page == 5 && s.Image != nil {
				return true
			}
		}
		return false
	})

	eventually(t, "page 5 text layer", func() bool {
		for _, s := range e.Surfaces() {
			if s.Page == 5 && s.Text != nil {
				return true
			}
		}
		return false
	})

	// A return trip serves from cache without new provider calls.
	eventually(t, "queue drain", func() bool {
		return e.Stats().PendingRenders == 0
	})
	before := provider.renderCount()
	e.GoToPage(6)
	e.GoToPage(5)
	eventually(t, "second visit settle", func() bool {
		return e.Stats().PendingRenders == 0
	})
	if after := provider.renderCount(); after > before+4 {
		t.Errorf("return trip re-rendered heavily: %d calls before, %d after", before, after)
	}
}

func TestRenderFailureKeepsEngineAlive(t *testing.T) {
	provider := &fakeProvider{errFor: map[int]error{
		2: fmt.Errorf("scan page: %w", ErrDecode),
	}}
	e, err := New(provider, 5, WithFrameScheduler(&manualFrames{}))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Destroy()
	if err := e.SetViewport(800, 600); err != nil {
		t.Fatal(err)
	}
	if err := e.GoToPage(2); err != nil {
		t.Fatal(err)
	}
	eventually(t, "failed fetch settle", func() bool {
		return e.Stats().PendingRenders == 0
	})
	// The neighbors still rendered.
	eventually(t, "neighbor bitmaps", func() bool {
		ok := false
		for _, s := range e.Surfaces() {
			if s.Page == 1 && s.Image != nil {
				ok = true
			}
		}
		return ok
	})
	if got := e.CurrentPage(); got != 2 {
		t.Errorf("CurrentPage = %d, want 2", got)
	}
}

func TestStaleCompletionDropped(t *testing.T) {
	provider := &fakeProvider{gate: make(chan struct{})}
	e, err := New(provider, 10, WithFrameScheduler(&manualFrames{}))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Destroy()
	if err := e.SetViewport(800, 600); err != nil {
		t.Fatal(err)
	}
	if err := e.GoToPage(3); err != nil {
		t.Fatal(err)
	}

	// Renders are gated; a mode switch bumps the version under them.
	if err := e.SetDisplayMode(ModeAutoGrid); err != nil {
		t.Fatal(err)
	}
	close(provider.gate)

	eventually(t, "stale drops recorded", func() bool {
		return e.Stats().StaleDropped > 0
	})
}

func TestFitToWidth(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.GoToPage(4)
	if err := e.FitToWidth(); err != nil {
		t.Fatal(err)
	}
	// Page width 612, viewport 800, padding 24 on both sides.
	want := (800.0 - 48) / 612
	if got := e.Zoom(); !closeTo(got, want) {
		t.Errorf("Zoom = %v, want %v", got, want)
	}
}

func TestFitPageInView(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	if err := e.FitPageInView(7); err != nil {
		t.Fatal(err)
	}
	if got := e.CurrentPage(); got != 7 {
		t.Errorf("CurrentPage = %d, want 7", got)
	}
	cam := e.Camera()
	rect, _ := e.layout.PageRect(7)
	vis := cam.VisibleRect(800, 600)
	if !vis.Contains(rect.Center()) {
		t.Errorf("page 7 center %+v outside visible rect %+v", rect.Center(), vis)
	}
	if rect.H*cam.Zoom > 600 {
		t.Errorf("fitted page taller than viewport: %v", rect.H*cam.Zoom)
	}
	if err := e.FitPageInView(99); err == nil {
		t.Error("FitPageInView(99) succeeded")
	}
}

func TestSetPageSizesRelayout(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.GoToPage(5)
	sizes := make([]PageSize, 10)
	for i := range sizes {
		sizes[i] = PageSize{W: 1000, H: 400}
	}
	if err := e.SetPageSizes(sizes); err != nil {
		t.Fatal(err)
	}
	rect, ok := e.layout.PageRect(5)
	if !ok || rect.W != 1000 {
		t.Errorf("page 5 rect = %+v after size update", rect)
	}
	if got := e.CurrentPage(); got != 5 {
		t.Errorf("CurrentPage = %d after relayout, want 5", got)
	}
}

func TestAutoGridReflowOnZoom(t *testing.T) {
	e, _ := newTestEngine(t, 200, WithDisplayMode(ModeAutoGrid))
	e.GoToPage(42)
	colsBefore := func() int {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.layout.Columns()
	}()

	if err := e.SetZoom(0.1); err != nil {
		t.Fatal(err)
	}
	colsAfter := func() int {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.layout.Columns()
	}()
	if colsAfter <= colsBefore {
		t.Errorf("columns %d -> %d, want growth on zoom out", colsBefore, colsAfter)
	}
	if got := e.CurrentPage(); got != 42 {
		t.Errorf("CurrentPage = %d after reflow, want 42", got)
	}
}

func TestDestroy(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.Destroy()
	e.Destroy() // idempotent

	if err := e.GoToPage(1); err != ErrEngineClosed {
		t.Errorf("GoToPage after Destroy = %v, want ErrEngineClosed", err)
	}
	if err := e.SetZoom(2); err != ErrEngineClosed {
		t.Errorf("SetZoom after Destroy = %v, want ErrEngineClosed", err)
	}
	if got := len(e.Surfaces()); got != 0 {
		t.Errorf("%d surfaces survived Destroy", got)
	}
}

func TestStatsSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, 50)
	e.GoToPage(25)
	eventually(t, "renders settle", func() bool {
		return e.Stats().PendingRenders == 0
	})
	stats := e.Stats()
	if stats.Pages != 50 || stats.CurrentPage != 25 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Surfaces == 0 || stats.SurfacesCreated == 0 {
		t.Errorf("surface counters empty: %+v", stats)
	}
	if stats.ImageCache.Len == 0 {
		t.Error("image cache empty after renders")
	}
}

func TestPageTextIn(t *testing.T) {
	e, _ := newTestEngine(t, 20)
	e.GoToPage(5)
	eventually(t, "text layer", func() bool {
		_, ok := e.PageTextIn(5, Rect{W: 612, H: 792})
		return ok
	})
	text, ok := e.PageTextIn(5, Rect{W: 612, H: 792})
	if !ok || text != "page 5" {
		t.Errorf("PageTextIn = %q, %v", text, ok)
	}
	if _, ok := e.PageTextIn(19, Rect{}); ok {
		t.Error("PageTextIn reported text for a page with no surface")
	}
}

func TestReportSelection(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	var got []SelectionEvent
	unsub := e.SelectionChanged.Subscribe(func(ev SelectionEvent) {
		got = append(got, ev)
	})
	defer unsub()

	e.ReportSelection(SelectionEvent{Page: 2, Text: "hello"})
	if len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("selection events = %+v", got)
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
