package docview

import (
	"sync"
	"testing"
	"time"
)

func newGestureRig(t *testing.T, pageCount int, opts ...Option) (*Engine, *GestureController, *manualFrames) {
	t.Helper()
	frames := &manualFrames{}
	provider := &fakeProvider{}
	opts = append([]Option{WithFrameScheduler(frames)}, opts...)
	e, err := New(provider, pageCount, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Destroy)
	if err := e.SetViewport(800, 600); err != nil {
		t.Fatal(err)
	}
	return e, NewGestureController(e), frames
}

func TestPointerDrag(t *testing.T) {
	e, g, _ := newGestureRig(t, 50)
	e.GoToPage(10)
	before := e.Camera()

	t0 := time.Now()
	g.PointerDown(Point{X: 400, Y: 300}, t0)
	g.PointerMove(Point{X: 400, Y: 200}, t0.Add(16*time.Millisecond))
	g.PointerUp(t0.Add(200 * time.Millisecond))

	after := e.Camera()
	if after.Y != before.Y-100 {
		t.Errorf("drag moved Y from %v to %v, want %v", before.Y, after.Y, before.Y-100)
	}
	// Vertical scroll with a narrow canvas keeps X locked.
	if after.X != before.X {
		t.Errorf("drag moved X from %v to %v", before.X, after.X)
	}
}

func TestPointerMoveOutsideDragIgnored(t *testing.T) {
	e, g, _ := newGestureRig(t, 10)
	e.GoToPage(5)
	before := e.Camera()
	g.PointerMove(Point{X: 100, Y: 100}, time.Now())
	if got := e.Camera(); got != before {
		t.Errorf("move without down changed camera from %+v to %+v", before, got)
	}
}

func TestFlingInertia(t *testing.T) {
	e, g, frames := newGestureRig(t, 200)
	e.GoToPage(50)

	t0 := time.Now()
	g.PointerDown(Point{X: 400, Y: 500}, t0)
	g.PointerMove(Point{X: 400, Y: 460}, t0.Add(16*time.Millisecond))
	g.PointerMove(Point{X: 400, Y: 420}, t0.Add(32*time.Millisecond))
	// Release while still moving: within the quiet window.
	g.PointerUp(t0.Add(40 * time.Millisecond))

	atRelease := e.Camera()
	now := t0.Add(40 * time.Millisecond)
	for range 10 {
		now = now.Add(16 * time.Millisecond)
		frames.tick(now)
	}
	coasting := e.Camera()
	if coasting.Y >= atRelease.Y {
		t.Errorf("no coasting after fling: Y %v -> %v", atRelease.Y, coasting.Y)
	}

	// Run the decay to exhaustion; motion must stop on its own.
	for range 300 {
		now = now.Add(16 * time.Millisecond)
		frames.tick(now)
	}
	stopped := e.Camera()
	now = now.Add(16 * time.Millisecond)
	frames.tick(now)
	if got := e.Camera(); got != stopped {
		t.Errorf("camera still moving after decay: %+v -> %+v", stopped, got)
	}
}

func TestFlingStartRacesFrames(t *testing.T) {
	e, g, frames := newGestureRig(t, 200)
	e.GoToPage(50)

	// Frames run on their own goroutine, as with the real ticker
	// scheduler, so a frame can fire the instant the fling hook
	// registers.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		now := time.Now()
		for {
			select {
			case <-stop:
				return
			default:
				now = now.Add(time.Millisecond)
				frames.tick(now)
			}
		}
	}()

	t0 := time.Now()
	for range 20 {
		g.PointerDown(Point{X: 400, Y: 500}, t0)
		g.PointerMove(Point{X: 400, Y: 420}, t0.Add(16*time.Millisecond))
		g.PointerUp(t0.Add(20 * time.Millisecond))
		t0 = t0.Add(40 * time.Millisecond)
	}

	// The last fling decays under the concurrent frames and must
	// remove itself cleanly.
	eventually(t, "fling self-removal", func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.stopInertia == nil
	})
	close(stop)
	wg.Wait()
}

func TestQuietReleaseNoFling(t *testing.T) {
	e, g, frames := newGestureRig(t, 200)
	e.GoToPage(50)

	t0 := time.Now()
	g.PointerDown(Point{X: 400, Y: 500}, t0)
	g.PointerMove(Point{X: 400, Y: 400}, t0.Add(16*time.Millisecond))
	// The pointer rests past the quiet window before release.
	g.PointerUp(t0.Add(300 * time.Millisecond))

	before := e.Camera()
	now := t0.Add(300 * time.Millisecond)
	for range 10 {
		now = now.Add(16 * time.Millisecond)
		frames.tick(now)
	}
	if got := e.Camera(); got != before {
		t.Errorf("quiet release still flung: %+v -> %+v", before, got)
	}
}

func TestNewInputCancelsFling(t *testing.T) {
	e, g, frames := newGestureRig(t, 200)
	e.GoToPage(50)

	t0 := time.Now()
	g.PointerDown(Point{X: 400, Y: 500}, t0)
	g.PointerMove(Point{X: 400, Y: 420}, t0.Add(16*time.Millisecond))
	g.PointerUp(t0.Add(20 * time.Millisecond))

	// Touch down again immediately: the fling must die.
	g.PointerDown(Point{X: 400, Y: 420}, t0.Add(30*time.Millisecond))
	g.PointerUp(t0.Add(400 * time.Millisecond))

	before := e.Camera()
	now := t0.Add(400 * time.Millisecond)
	for range 10 {
		now = now.Add(16 * time.Millisecond)
		frames.tick(now)
	}
	if got := e.Camera(); got != before {
		t.Errorf("cancelled fling still moving: %+v -> %+v", before, got)
	}
}

func TestWheelPanAndZoom(t *testing.T) {
	e, g, _ := newGestureRig(t, 50)
	e.GoToPage(10)

	t.Run("plain wheel pans", func(t *testing.T) {
		before := e.Camera()
		g.Wheel(Point{X: 400, Y: 300}, 0, 120, false)
		after := e.Camera()
		if after.Y != before.Y-120 {
			t.Errorf("wheel pan Y %v -> %v, want %v", before.Y, after.Y, before.Y-120)
		}
	})

	t.Run("ctrl wheel zooms toward cursor", func(t *testing.T) {
		before := e.Zoom()
		g.Wheel(Point{X: 200, Y: 150}, 0, -240, true)
		if after := e.Zoom(); after <= before {
			t.Errorf("ctrl wheel up did not zoom in: %v -> %v", before, after)
		}
	})
}

func TestPinch(t *testing.T) {
	e, g, _ := newGestureRig(t, 10)
	e.GoToPage(3)

	g.PinchStart()
	g.Pinch(Point{X: 400, Y: 300}, 2)
	if got := e.Zoom(); !closeTo(got, 2) {
		t.Errorf("Zoom = %v after pinch x2, want 2", got)
	}
	// Scale is cumulative from the pinch start, not the last update.
	g.Pinch(Point{X: 400, Y: 300}, 3)
	if got := e.Zoom(); !closeTo(got, 3) {
		t.Errorf("Zoom = %v after pinch x3, want 3", got)
	}
	g.PinchEnd()

	// Updates after the pinch ended are ignored.
	g.Pinch(Point{X: 400, Y: 300}, 10)
	if got := e.Zoom(); !closeTo(got, 3) {
		t.Errorf("Zoom = %v after stray pinch, want 3", got)
	}
}

func TestKeyboardCommands(t *testing.T) {
	e, g, _ := newGestureRig(t, 100)
	e.GoToPage(10)

	g.HandleKey(KeyPageDown)
	if got := e.CurrentPage(); got != 11 {
		t.Errorf("page-down: page %d, want 11", got)
	}
	g.HandleKey(KeyPageUp)
	if got := e.CurrentPage(); got != 10 {
		t.Errorf("page-up: page %d, want 10", got)
	}
	g.HandleKey(KeyHome)
	if got := e.CurrentPage(); got != 1 {
		t.Errorf("home: page %d, want 1", got)
	}
	g.HandleKey(KeyEnd)
	if got := e.CurrentPage(); got != 100 {
		t.Errorf("end: page %d, want 100", got)
	}

	g.HandleKey(KeyZoomIn)
	if got := e.Zoom(); !closeTo(got, keyZoomStep) {
		t.Errorf("zoom-in: %v, want %v", got, keyZoomStep)
	}
	g.HandleKey(KeyZoomReset)
	if got := e.Zoom(); got != 1 {
		t.Errorf("zoom-reset: %v, want 1", got)
	}

	before := e.Camera()
	g.HandleKey(KeyDown)
	if got := e.Camera(); got.Y != before.Y-keyPanStep {
		t.Errorf("arrow down Y %v -> %v", before.Y, got.Y)
	}
}

func TestPaginatedArrowsFlipPages(t *testing.T) {
	e, g, _ := newGestureRig(t, 10, WithDisplayMode(ModePaginated))
	e.GoToPage(5)

	g.HandleKey(KeyRight)
	if got := e.CurrentPage(); got != 6 {
		t.Errorf("right arrow: page %d, want 6", got)
	}
	g.HandleKey(KeyLeft)
	if got := e.CurrentPage(); got != 5 {
		t.Errorf("left arrow: page %d, want 5", got)
	}
}
