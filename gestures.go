package docview

import (
	"math"
	"sync"
	"time"
)

// Gesture tuning.
const (
	// inertiaDecay is the per-frame velocity multiplier during a fling.
	inertiaDecay = 0.92

	// inertiaQuiet is how long the pointer may rest before release
	// without killing the fling: a pause longer than this means the
	// user stopped deliberately.
	inertiaQuiet = 80 * time.Millisecond

	// inertiaMinSpeed stops the fling once it drops below this many
	// screen pixels per second.
	inertiaMinSpeed = 20.0

	// wheelZoomRate converts wheel delta to a zoom exponent.
	wheelZoomRate = 0.0015

	// keyZoomStep is the zoom factor per keyboard zoom press.
	keyZoomStep = 1.25

	// keyPanStep is the pan distance per arrow key press in screen
	// pixels.
	keyPanStep = 64.0
)

// Key identifies a keyboard command the controller understands. Hosts
// translate their own key events into these.
type Key string

const (
	KeyZoomIn    Key = "zoom-in"    // ctrl-plus
	KeyZoomOut   Key = "zoom-out"   // ctrl-minus
	KeyZoomReset Key = "zoom-reset" // ctrl-zero
	KeyUp        Key = "up"
	KeyDown      Key = "down"
	KeyLeft      Key = "left"
	KeyRight     Key = "right"
	KeyPageUp    Key = "page-up"
	KeyPageDown  Key = "page-down"
	KeyHome      Key = "home"
	KeyEnd       Key = "end"
)

// GestureController translates host input events (pointer, wheel, pinch,
// keyboard) into engine camera operations, with velocity tracking and
// fling inertia. One controller serves one engine.
//
// Thread safety: safe for concurrent use, though hosts normally deliver
// input from a single event loop goroutine.
type GestureController struct {
	engine *Engine

	mu sync.Mutex

	dragging bool
	lastPos  Point
	lastMove time.Time

	// velocity is the smoothed drag velocity in screen pixels per
	// second.
	velocity Point

	pinching  bool
	pinchBase float64

	stopInertia func()
}

// NewGestureController wires a controller to an engine.
func NewGestureController(e *Engine) *GestureController {
	return &GestureController{engine: e}
}

// PointerDown begins a drag. Any in-flight fling stops.
func (g *GestureController) PointerDown(pos Point, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelInertiaLocked()
	g.dragging = true
	g.lastPos = pos
	g.lastMove = at
	g.velocity = Point{}
}

// PointerMove pans the camera by the pointer delta and updates the
// velocity estimate. No-op outside a drag.
func (g *GestureController) PointerMove(pos Point, at time.Time) {
	g.mu.Lock()
	if !g.dragging {
		g.mu.Unlock()
		return
	}
	delta := pos.Sub(g.lastPos)
	dt := at.Sub(g.lastMove).Seconds()
	if dt > 0 {
		instant := delta.Div(dt)
		// Exponential smoothing keeps one jittery event from dominating
		// the fling velocity.
		g.velocity = instant.Mul(0.8).Add(g.velocity.Mul(0.2))
	}
	g.lastPos = pos
	g.lastMove = at
	velocity := g.velocity
	zoom := g.engine.Zoom()
	g.mu.Unlock()

	g.engine.Pan(delta.X, delta.Y)
	if zoom > 0 {
		g.engine.noteVelocity(velocity.Div(zoom))
	}
}

// PointerUp ends the drag. A release on the move starts a fling; a
// release after the pointer rested does not.
func (g *GestureController) PointerUp(at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.dragging {
		return
	}
	g.dragging = false
	if at.Sub(g.lastMove) > inertiaQuiet {
		g.velocity = Point{}
		return
	}
	if g.velocity.Length() >= inertiaMinSpeed {
		g.startInertiaLocked()
	}
}

// startInertiaLocked registers a frame hook that keeps panning with
// decaying velocity until it fades out. Caller holds g.mu, which also
// orders the handle assignment before any hook invocation: the hook
// reads its own removal handle from g.stopInertia under the same lock,
// so a frame firing right after registration cannot observe it unset.
func (g *GestureController) startInertiaLocked() {
	last := time.Now()
	g.stopInertia = g.engine.addFrameHook(func(now time.Time) {
		dt := now.Sub(last).Seconds()
		last = now
		if dt <= 0 {
			return
		}
		g.mu.Lock()
		g.velocity = g.velocity.Mul(inertiaDecay)
		v := g.velocity
		stop := g.stopInertia
		if v.Length() < inertiaMinSpeed {
			g.stopInertia = nil
			g.mu.Unlock()
			if stop != nil {
				stop()
			}
			g.engine.noteVelocity(Point{})
			return
		}
		g.mu.Unlock()
		g.engine.Pan(v.X*dt, v.Y*dt)
	})
}

// cancelInertiaLocked stops any in-flight fling. Caller holds g.mu.
func (g *GestureController) cancelInertiaLocked() {
	if g.stopInertia != nil {
		g.stopInertia()
		g.stopInertia = nil
	}
}

// Wheel handles scroll wheel and trackpad events. With ctrl held the
// wheel zooms toward the cursor; otherwise it pans.
func (g *GestureController) Wheel(pos Point, dx, dy float64, ctrl bool) {
	g.mu.Lock()
	g.cancelInertiaLocked()
	g.mu.Unlock()

	if ctrl {
		factor := math.Exp(-dy * wheelZoomRate)
		g.engine.ZoomBy(pos, factor)
		return
	}
	// Wheel down moves the content up.
	g.engine.Pan(-dx, -dy)
	if zoom := g.engine.Zoom(); zoom > 0 {
		// Treat each wheel tick as motion over one nominal frame.
		g.engine.noteVelocity(Point{X: -dx, Y: -dy}.Mul(60 / zoom))
	}
}

// PinchStart begins a pinch gesture, capturing the base zoom that later
// Pinch scale factors multiply.
func (g *GestureController) PinchStart() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelInertiaLocked()
	g.pinching = true
	g.pinchBase = g.engine.Zoom()
}

// Pinch applies a pinch update: scale is the total scale factor since
// PinchStart, focal the screen midpoint between the touches.
func (g *GestureController) Pinch(focal Point, scale float64) {
	g.mu.Lock()
	if !g.pinching || scale <= 0 {
		g.mu.Unlock()
		return
	}
	base := g.pinchBase
	g.mu.Unlock()
	g.engine.ZoomAt(focal, base*scale)
}

// PinchEnd finishes a pinch gesture.
func (g *GestureController) PinchEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pinching = false
}

// HandleKey executes a keyboard command. Unknown keys are ignored.
func (g *GestureController) HandleKey(key Key) {
	g.mu.Lock()
	g.cancelInertiaLocked()
	g.mu.Unlock()

	e := g.engine
	center := func() Point {
		e.mu.Lock()
		defer e.mu.Unlock()
		return Point{X: e.viewportW / 2, Y: e.viewportH / 2}
	}

	switch key {
	case KeyZoomIn:
		e.ZoomBy(center(), keyZoomStep)
	case KeyZoomOut:
		e.ZoomBy(center(), 1/keyZoomStep)
	case KeyZoomReset:
		e.SetZoom(1)
	case KeyUp:
		if e.Mode() == ModePaginated {
			e.PrevPage()
		} else {
			e.Pan(0, keyPanStep)
		}
	case KeyDown:
		if e.Mode() == ModePaginated {
			e.NextPage()
		} else {
			e.Pan(0, -keyPanStep)
		}
	case KeyLeft:
		if e.Mode() == ModePaginated {
			e.PrevPage()
		} else {
			e.Pan(keyPanStep, 0)
		}
	case KeyRight:
		if e.Mode() == ModePaginated {
			e.NextPage()
		} else {
			e.Pan(-keyPanStep, 0)
		}
	case KeyPageUp:
		e.PrevPage()
	case KeyPageDown:
		e.NextPage()
	case KeyHome:
		e.GoToPage(1)
	case KeyEnd:
		e.mu.Lock()
		last := e.pageCount
		e.mu.Unlock()
		if last > 0 {
			e.GoToPage(last)
		}
	}
}
