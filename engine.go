package docview

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/docview/internal/cache"
	"github.com/gogpu/docview/internal/parallel"
)

// Debounce windows for scheduling work behind bursty input.
const (
	// discoverDelay coalesces visibility passes during scroll storms.
	discoverDelay = 30 * time.Millisecond

	// upgradeDelay is how long the zoom level must hold still before
	// pages are re-fetched at the new resolution.
	upgradeDelay = 250 * time.Millisecond
)

// Engine virtualizes a paginated document behind a camera: it tracks
// which pages are visible, keeps a bounded working set of page surfaces,
// and schedules rendering through a ContentProvider so that documents
// with thousands of pages cost no more than the handful on screen.
//
// Thread safety: all exported methods are safe for concurrent use. One
// mutex guards the full engine state; provider calls run on a worker
// pool and re-validate under the lock before their results are applied.
type Engine struct {
	mu sync.Mutex

	provider ContentProvider
	tiler    TileRenderer // nil when tiles are unavailable

	opts engineOptions

	pageCount int
	pageSizes []PageSize

	mode   DisplayMode
	bounds ZoomBounds
	layout *Layout
	camera Camera

	viewportW float64
	viewportH float64

	current int

	surfaces *surfacePool
	images   *pageImageCache
	tiles    *tileCoordinator
	pending  *parallel.PageSet
	textWip  *parallel.PageSet

	// aborts holds the cancel func of every in-flight page fetch, so
	// the sweep can abort work for pages that left the keep buffer.
	aborts map[int]context.CancelFunc

	pool *parallel.WorkerPool

	// version stamps every scheduled fetch; bumped when zoom, mode,
	// viewport, or page sizes change so in-flight work for the old
	// state is discarded on completion.
	version uint64

	staleDropped uint64

	prefetch PrefetchStrategy

	// velocity is the recent scroll velocity in canvas units per
	// second, fed by the gesture controller and consumed by prefetch.
	velocity Point

	// zooming suppresses new full-resolution fetches until the zoom
	// level settles (upgradeDelay).
	zooming bool

	discoverTimer *time.Timer
	upgradeTimer  *time.Timer

	// anim is the in-flight smooth camera move, nil when idle.
	anim *cameraAnim

	frameHooks map[int]func(now time.Time)
	nextHookID int
	stopFrames func()

	ctx    context.Context
	cancel context.CancelFunc

	closed bool

	// PageChanged fires when the centered page changes. ZoomChanged
	// fires on every zoom mutation. Callbacks run synchronously on the
	// mutating goroutine and must not call back into the engine.
	PageChanged Signal[PageChangeEvent]
	ZoomChanged Signal[ZoomChangeEvent]

	// SelectionChanged and HighlightClicked relay host-reported text
	// selections and highlight hits to subscribers.
	SelectionChanged Signal[SelectionEvent]
	HighlightClicked Signal[HighlightClickEvent]
}

// cameraAnim interpolates the camera toward a target over a fixed
// duration.
type cameraAnim struct {
	from, to Camera
	start    time.Time
	duration time.Duration
}

// New creates an engine over a provider. The engine is idle until
// SetViewport establishes the viewport dimensions.
func New(provider ContentProvider, pageCount int, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("docview: nil provider")
	}
	if pageCount < 0 {
		return nil, fmt.Errorf("docview: negative page count %d", pageCount)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		provider:  provider,
		opts:      o,
		pageCount: pageCount,
		pageSizes: o.pageSizes,
		mode:      o.mode,
		bounds:    o.mode.ZoomBounds(),
		camera:    Camera{Zoom: 1},
		surfaces:  newSurfacePool(),
		images:    newPageImageCache(o.cacheSize),
		tiles:     newTileCoordinator(o.tileCacheSize),
		pending:   parallel.NewPageSet(pageCount),
		textWip:   parallel.NewPageSet(pageCount),
		aborts:    make(map[int]context.CancelFunc),
		pool:      parallel.NewWorkerPool(o.concurrency),
		prefetch:  o.prefetch,
	}
	if e.prefetch == nil {
		e.prefetch = strategyFor(o.mode)
	}
	if !o.disableTiles {
		if tp, ok := provider.(TileRenderingProvider); ok {
			if tr, ok := tp.TileRenderer(); ok {
				e.tiler = tr
			}
		}
	}
	if pageCount > 0 {
		e.current = 1
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.layout = e.buildLayout()
	e.stopFrames = o.frames.Start(e.frame)

	Logger().Info("engine initialized",
		slog.Int("pages", pageCount),
		slog.String("mode", e.mode.String()),
		slog.Int("workers", e.pool.Workers()),
		slog.Bool("tiles", e.tiler != nil))
	return e, nil
}

// buildLayout recomputes the page layout for the current mode, sizes and
// viewport. Caller holds mu (or the engine is not yet shared).
func (e *Engine) buildLayout() *Layout {
	columns := e.opts.columns
	if e.mode == ModeAutoGrid || e.mode == ModeCanvas {
		columns = AutoGridColumns(e.viewportW, e.camera.Zoom, e.opts.defaultSize,
			e.opts.gap, e.opts.padding, e.pageCount)
	}
	return NewLayout(LayoutConfig{
		Mode:      e.mode,
		PageCount: e.pageCount,
		PageSizes: e.pageSizes,
		Default:   e.opts.defaultSize,
		Gap:       e.opts.gap,
		Padding:   e.opts.padding,
		Columns:   columns,
	})
}

// SetViewport establishes or updates the viewport size in screen units.
// The current page stays in view across resizes.
func (e *Engine) SetViewport(w, h float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("docview: invalid viewport %gx%g", w, h)
	}
	e.viewportW, e.viewportH = w, h
	e.version++
	e.layout = e.buildLayout()
	e.scrollToPageLocked(e.current)
	e.afterMutation(false)
	return nil
}

// GoToPage jumps to a page. The page lands centered in grid modes and
// aligned to the viewport start in the scroll modes.
func (e *Engine) GoToPage(page int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if page < 1 || page > e.pageCount {
		return fmt.Errorf("docview: page %d out of range 1..%d", page, e.pageCount)
	}
	e.anim = nil
	e.setCurrentLocked(page)
	e.scrollToPageLocked(page)
	e.renderPassLocked()
	return nil
}

// NextPage advances by one page, or one spread in multi-column paginated
// mode. No-op at the end of the document.
func (e *Engine) NextPage() error {
	e.mu.Lock()
	step := e.pageStepLocked()
	page := min(e.current+step, e.pageCount)
	e.mu.Unlock()
	if page == 0 {
		return nil
	}
	return e.GoToPage(page)
}

// PrevPage goes back by one page or spread. No-op at the start.
func (e *Engine) PrevPage() error {
	e.mu.Lock()
	step := e.pageStepLocked()
	page := max(e.current-step, 1)
	e.mu.Unlock()
	if e.pageCount == 0 {
		return nil
	}
	return e.GoToPage(page)
}

func (e *Engine) pageStepLocked() int {
	if e.mode == ModePaginated && e.opts.columns > 1 {
		return e.opts.columns
	}
	return 1
}

// CurrentPage returns the 1-based page nearest the viewport center, or 0
// for an empty document.
func (e *Engine) CurrentPage() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Zoom returns the current zoom factor.
func (e *Engine) Zoom() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera.Zoom
}

// SetZoom zooms around the viewport center.
func (e *Engine) SetZoom(zoom float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	focal := Point{X: e.viewportW / 2, Y: e.viewportH / 2}
	e.applyCameraLocked(e.camera.ZoomAt(focal, zoom, e.bounds))
	return nil
}

// ZoomAt zooms toward a screen-space focal point. The canvas point under
// the focal point stays fixed on screen.
func (e *Engine) ZoomAt(focal Point, zoom float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.applyCameraLocked(e.camera.ZoomAt(focal, zoom, e.bounds))
	return nil
}

// ZoomBy multiplies the zoom factor around a screen-space focal point.
func (e *Engine) ZoomBy(focal Point, factor float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.applyCameraLocked(e.camera.ZoomBy(focal, factor, e.bounds))
	return nil
}

// Pan moves the camera by a screen-space delta. Paginated mode ignores
// pans entirely; the scroll modes constrain the cross axis unless the
// content is zoomed wider than the viewport.
func (e *Engine) Pan(dxScreen, dyScreen float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	dx, dy := e.constrainPanLocked(dxScreen, dyScreen)
	if dx == 0 && dy == 0 {
		return nil
	}
	e.applyCameraLocked(e.camera.Pan(dx, dy))
	return nil
}

// constrainPanLocked applies the mode's axis lock to a pan delta. The
// cross-axis lock lifts when the canvas is wider (or taller) on screen
// than the viewport.
func (e *Engine) constrainPanLocked(dx, dy float64) (float64, float64) {
	switch e.mode.PanAxis() {
	case PanNone:
		return 0, 0
	case PanHorizontal:
		if e.layout.Bounds().H*e.camera.Zoom <= e.viewportH {
			dy = 0
		}
	case PanVertical:
		if e.layout.Bounds().W*e.camera.Zoom <= e.viewportW {
			dx = 0
		}
	}
	return dx, dy
}

// SetDisplayMode switches display modes, preserving the current page.
func (e *Engine) SetDisplayMode(mode DisplayMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if mode == e.mode {
		return nil
	}
	if mode < ModePaginated || mode > ModeCanvas {
		return fmt.Errorf("docview: unknown display mode %d", mode)
	}
	Logger().Info("display mode change",
		slog.String("from", e.mode.String()),
		slog.String("to", mode.String()))
	e.mode = mode
	e.bounds = mode.ZoomBounds()
	e.camera.Zoom = e.bounds.Clamp(e.camera.Zoom)
	e.version++
	e.anim = nil
	e.zooming = false
	e.tiles.clear()
	e.surfaces.flush()
	if e.opts.prefetch == nil {
		e.prefetch = strategyFor(mode)
	}
	e.layout = e.buildLayout()
	e.scrollToPageLocked(e.current)
	e.afterMutation(false)
	return nil
}

// Mode returns the active display mode.
func (e *Engine) Mode() DisplayMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetPageSizes replaces the per-page sizes and relays out the document,
// keeping the current page in view. Used once real page dimensions are
// known after the provider opens the document.
func (e *Engine) SetPageSizes(sizes []PageSize) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.pageSizes = sizes
	e.version++
	e.layout = e.buildLayout()
	e.scrollToPageLocked(e.current)
	e.afterMutation(false)
	return nil
}

// FitToWidth zooms so the current page spans the viewport width.
func (e *Engine) FitToWidth() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	rect, ok := e.layout.PageRect(e.current)
	if !ok || rect.W <= 0 {
		return nil
	}
	zoom := e.bounds.Clamp((e.viewportW - 2*e.opts.padding) / rect.W)
	cam := e.camera
	cam.Zoom = zoom
	cam.X = -rect.X + (e.viewportW/zoom-rect.W)/2
	cam.Y = -rect.Y
	e.applyCameraLocked(cam)
	return nil
}

// FitToPage zooms and positions so the current page fits the viewport.
func (e *Engine) FitToPage() error {
	return e.FitPageInView(0)
}

// FitPageInView centers a page in the viewport at the largest zoom that
// shows it whole. Page 0 means the current page.
func (e *Engine) FitPageInView(page int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if page == 0 {
		page = e.current
	}
	rect, ok := e.layout.PageRect(page)
	if !ok {
		return fmt.Errorf("docview: page %d out of range 1..%d", page, e.pageCount)
	}
	e.setCurrentLocked(page)
	e.applyCameraLocked(e.camera.FitBox(rect, e.viewportW, e.viewportH, e.opts.padding, e.bounds))
	return nil
}

// Surfaces returns a snapshot of the live page surfaces in page order.
// The host draws these each frame: Rect positions the page on the
// canvas, Image (or Tiles at high zoom) holds the pixels. The snapshot
// is safe to read while the engine keeps rendering.
func (e *Engine) Surfaces() []PageSurface {
	e.mu.Lock()
	defer e.mu.Unlock()
	pages := e.surfaces.pages()
	slices.Sort(pages)
	out := make([]PageSurface, 0, len(pages))
	for _, p := range pages {
		s := *e.surfaces.get(p)
		if s.Tiles != nil {
			s.Tiles = maps.Clone(s.Tiles)
		}
		out = append(out, s)
	}
	return out
}

// Camera returns a snapshot of the camera.
func (e *Engine) Camera() Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

// ReportSelection forwards a completed host text selection to
// subscribers.
func (e *Engine) ReportSelection(ev SelectionEvent) {
	e.SelectionChanged.Emit(ev)
}

// ReportHighlightClick forwards a host click on a highlight annotation
// to subscribers.
func (e *Engine) ReportHighlightClick(ev HighlightClickEvent) {
	e.HighlightClicked.Emit(ev)
}

// PageTextIn returns the text of the runs intersecting a page-space
// region, in layout order. ok is false when the page's text layer has
// not loaded yet.
func (e *Engine) PageTextIn(page int, region Rect) (text string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.surfaces.get(page)
	if s == nil || s.Text == nil {
		return "", false
	}
	var parts []string
	for _, run := range s.Text.Runs {
		if run.Rect.Empty() || run.Rect.Intersects(region) {
			parts = append(parts, run.Text)
		}
	}
	return strings.Join(parts, "\n"), true
}

// EngineStats is a point-in-time snapshot of engine internals.
type EngineStats struct {
	Pages             int
	CurrentPage       int
	Zoom              float64
	Mode              DisplayMode
	Surfaces          int
	SurfacesCreated   uint64
	SurfacesDestroyed uint64
	ImageCache        cache.Stats
	TileCache         cache.Stats
	PendingRenders    int
	QueuedWork        int
	RenderVersion     uint64
	StaleDropped      uint64
}

// Stats returns a snapshot of engine internals for diagnostics.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStats{
		Pages:             e.pageCount,
		CurrentPage:       e.current,
		Zoom:              e.camera.Zoom,
		Mode:              e.mode,
		Surfaces:          e.surfaces.count(),
		SurfacesCreated:   e.surfaces.created,
		SurfacesDestroyed: e.surfaces.destroyed,
		ImageCache:        e.images.stats(),
		TileCache:         e.tiles.stats(),
		PendingRenders:    e.pending.Len(),
		QueuedWork:        e.pool.QueuedWork(),
		RenderVersion:     e.version,
		StaleDropped:      e.staleDropped,
	}
}

// Destroy stops all background work and releases every surface and cache
// entry. The engine is unusable afterwards; Destroy is idempotent.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.cancel()
	if e.discoverTimer != nil {
		e.discoverTimer.Stop()
	}
	if e.upgradeTimer != nil {
		e.upgradeTimer.Stop()
	}
	stop := e.stopFrames
	e.surfaces.flush()
	e.images.clear()
	e.tiles.clear()
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
	e.pool.Close()
	Logger().Info("engine destroyed")
}

// applyCameraLocked installs a mutated camera and runs the shared
// post-mutation pipeline. Caller holds mu.
func (e *Engine) applyCameraLocked(cam Camera) {
	zoomChanged := cam.Zoom != e.camera.Zoom
	if cam == e.camera {
		return
	}
	e.camera = e.clampCameraLocked(cam)

	if zoomChanged {
		// Auto-grid reflows as zoom changes the column count.
		if e.mode == ModeAutoGrid || e.mode == ModeCanvas {
			cols := AutoGridColumns(e.viewportW, e.camera.Zoom, e.opts.defaultSize,
				e.opts.gap, e.opts.padding, e.pageCount)
			if cols != e.layout.Columns() {
				keep := e.current
				e.layout = e.buildLayout()
				e.scrollToPageLocked(keep)
			}
		}
		e.version++
		e.zooming = true
		e.scheduleUpgradeLocked()
		e.ZoomChanged.Emit(ZoomChangeEvent{Zoom: e.camera.Zoom})
	}
	e.afterMutation(zoomChanged)
}

// afterMutation is the shared tail of every camera or layout mutation:
// paginated recentering, current-page tracking, and a debounced
// visibility pass. Caller holds mu.
func (e *Engine) afterMutation(immediate bool) {
	if e.mode == ModePaginated {
		e.centerPageLocked(e.current)
	} else if e.viewportW > 0 {
		center := e.camera.ScreenToCanvas(Point{X: e.viewportW / 2, Y: e.viewportH / 2})
		e.setCurrentLocked(e.layout.NearestPage(center))
	}
	if immediate {
		e.renderPassLocked()
		return
	}
	e.scheduleDiscoveryLocked()
}

// setCurrentLocked updates the current page and fires change
// notifications. Caller holds mu.
func (e *Engine) setCurrentLocked(page int) {
	if page == e.current || page < 1 || page > e.pageCount {
		return
	}
	e.current = page
	e.PageChanged.Emit(PageChangeEvent{Page: page})
	if n, ok := e.provider.(PageChangeNotifier); ok {
		n.NotifyPageChange(page)
	}
	Logger().Debug("current page", slog.Int("page", page))
}

// scrollToPageLocked positions the camera on a page without changing
// zoom: centered for the grid modes, aligned to the viewport start for
// the scroll modes. Caller holds mu.
func (e *Engine) scrollToPageLocked(page int) {
	rect, ok := e.layout.PageRect(page)
	if !ok || e.viewportW <= 0 {
		return
	}
	cam := e.camera
	switch e.mode {
	case ModeVerticalScroll:
		cam.Y = -(rect.Y - e.opts.padding)
		cam.X = (e.viewportW/cam.Zoom - e.layout.Bounds().W) / 2
	case ModeHorizontalScroll:
		cam.X = -(rect.X - e.opts.padding)
		cam.Y = (e.viewportH/cam.Zoom - e.layout.Bounds().H) / 2
	default:
		center := rect.Center()
		cam.X = e.viewportW/(2*cam.Zoom) - center.X
		cam.Y = e.viewportH/(2*cam.Zoom) - center.Y
	}
	e.camera = e.clampCameraLocked(cam)
}

// centerPageLocked recenters paginated mode on the current page cell.
// Runs every mutation so pans can never drift off the page.
func (e *Engine) centerPageLocked(page int) {
	rect, ok := e.layout.PageRect(page)
	if !ok || e.viewportW <= 0 {
		return
	}
	center := rect.Center()
	e.camera.X = e.viewportW/(2*e.camera.Zoom) - center.X
	e.camera.Y = e.viewportH/(2*e.camera.Zoom) - center.Y
}

// clampCameraLocked keeps the canvas from being panned fully off screen.
// At least half the viewport always overlaps the canvas bounds.
func (e *Engine) clampCameraLocked(cam Camera) Camera {
	if e.viewportW <= 0 || cam.Zoom <= 0 {
		return cam
	}
	b := e.layout.Bounds()
	if b.Empty() {
		return cam
	}
	vw := e.viewportW / cam.Zoom
	vh := e.viewportH / cam.Zoom
	// cam.X in [-(b.MaxX - vw/2), vw/2 - b.X]
	cam.X = clampFloat(cam.X, vw/2-b.MaxX(), vw/2-b.X)
	cam.Y = clampFloat(cam.Y, vh/2-b.MaxY(), vh/2-b.Y)
	return cam
}

// frame is the FrameScheduler callback: advances smooth camera moves and
// any registered frame hooks (inertia).
func (e *Engine) frame(now time.Time) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	hooks := make([]func(time.Time), 0, len(e.frameHooks))
	for _, h := range e.frameHooks {
		hooks = append(hooks, h)
	}
	if a := e.anim; a != nil {
		t := float64(now.Sub(a.start)) / float64(a.duration)
		if t >= 1 {
			e.anim = nil
			e.applyCameraLocked(a.to)
		} else {
			// Ease-out cubic.
			t = 1 - (1-t)*(1-t)*(1-t)
			e.applyCameraLocked(a.from.Lerp(a.to, t))
		}
	}
	e.mu.Unlock()

	for _, h := range hooks {
		h(now)
	}
}

// addFrameHook registers a per-frame callback and returns its remover.
func (e *Engine) addFrameHook(hook func(now time.Time)) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frameHooks == nil {
		e.frameHooks = make(map[int]func(time.Time))
	}
	id := e.nextHookID
	e.nextHookID++
	e.frameHooks[id] = hook
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.frameHooks, id)
	}
}

// animateTo starts a smooth camera move, replacing any in-flight one.
func (e *Engine) animateTo(target Camera, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.anim = &cameraAnim{from: e.camera, to: e.clampCameraLocked(target), start: time.Now(), duration: d}
}

func clampFloat(v, lo, hi float64) float64 {
	if lo > hi {
		// Canvas smaller than half a viewport; pin to the midpoint.
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
