package docview

import (
	"context"
	"image"
	"log/slog"
	"slices"
	"time"
)

// Scheduling: every camera or layout mutation funnels into a debounced
// visibility pass (renderPassLocked) that reconciles the surface pool
// with the buffer tiers and queues provider work. Completions come back
// on worker goroutines and re-validate under the engine lock before
// touching any state; a version mismatch means the result raced a zoom,
// mode, or resize change and is dropped.

// scheduleDiscoveryLocked arms the short debounce in front of the
// visibility pass so scroll storms collapse into one pass. Caller holds
// mu.
func (e *Engine) scheduleDiscoveryLocked() {
	if e.discoverTimer != nil {
		e.discoverTimer.Reset(discoverDelay)
		return
	}
	e.discoverTimer = time.AfterFunc(discoverDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		e.renderPassLocked()
	})
}

// scheduleUpgradeLocked arms the quality-upgrade debounce: while the
// zoom level keeps moving, pages display whatever bitmap is cached; once
// it holds still for upgradeDelay, a full pass re-fetches at the settled
// resolution. Caller holds mu.
func (e *Engine) scheduleUpgradeLocked() {
	if e.upgradeTimer != nil {
		e.upgradeTimer.Reset(upgradeDelay)
		return
	}
	e.upgradeTimer = time.AfterFunc(upgradeDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		e.zooming = false
		e.renderPassLocked()
	})
}

// fetchReq is one candidate page render, carrying the attributes the
// priority order sorts on.
type fetchReq struct {
	page     int
	visible  bool
	neighbor bool
	dist     float64
}

// compareFetch orders render requests: on-screen pages first, then the
// immediate neighbors of the current page, then by distance from the
// viewport center.
func compareFetch(a, b fetchReq) int {
	if a.visible != b.visible {
		if a.visible {
			return -1
		}
		return 1
	}
	if a.neighbor != b.neighbor {
		if a.neighbor {
			return -1
		}
		return 1
	}
	switch {
	case a.dist < b.dist:
		return -1
	case a.dist > b.dist:
		return 1
	}
	return a.page - b.page
}

// renderPassLocked reconciles surfaces and render work with the current
// camera. Cost is proportional to the pages inside the keep buffer, not
// the document length. Caller holds mu.
func (e *Engine) renderPassLocked() {
	if e.closed || e.viewportW <= 0 || e.pageCount == 0 {
		return
	}
	zones := computeBufferZones(e.camera, e.viewportW, e.viewportH)
	vis := classifyPages(e.layout, zones)

	// Drop surfaces that scrolled past the keep buffer. Their bitmaps
	// stay in the image cache for a cheap return trip. A page with a
	// render in flight keeps its surface so the result has somewhere to
	// land; its fetch is aborted and the follow-up pass sweeps it.
	for _, p := range e.surfaces.pages() {
		if vis.inKeep(p) {
			continue
		}
		if e.pending.Contains(p) {
			if cancel, ok := e.aborts[p]; ok {
				cancel()
			}
			e.scheduleDiscoveryLocked()
			continue
		}
		e.surfaces.destroy(p)
	}

	scale := pageScaleFor(e.camera.Zoom, e.opts.pixelRatio)
	version := e.version
	center := zones.visible.Center()

	var reqs []fetchReq

	for _, p := range vis.element {
		rect, ok := e.layout.PageRect(p)
		if !ok {
			continue
		}
		s := e.surfaces.obtain(p, rect)
		s.Rect = rect

		entry, cached := e.images.get(p)
		if cached {
			// Any cached bitmap displays immediately, even at the wrong
			// scale; the authoritative render replaces it when it lands.
			s.Image = entry.img
			s.ImageScale = entry.scale
		}

		if !vis.inRender(p) {
			// Element tier stops at the placeholder surface; rendering
			// waits until the page crosses into the render buffer.
			continue
		}

		needsFetch := !cached || !e.images.goodEnough(entry, scale)
		if e.zooming && cached {
			// Mid-zoom, a stale-scale bitmap is good enough.
			needsFetch = false
		}
		if needsFetch && !e.pending.Contains(p) {
			reqs = append(reqs, fetchReq{
				page:     p,
				visible:  vis.isVisible(p),
				neighbor: p == e.current-1 || p == e.current+1,
				dist:     rect.Center().DistanceTo(center),
			})
		}

		if s.Text == nil && !e.textWip.Contains(p) {
			e.textWip.Add(p)
			page := p
			if !e.pool.TrySubmit(func() { e.fetchText(page, version) }) {
				e.textWip.Remove(page)
			}
		}
	}

	slices.SortFunc(reqs, compareFetch)
	for _, r := range reqs {
		page := r.page
		ctx := e.beginFetchLocked(page)
		if !e.pool.TrySubmit(func() { e.fetchPage(ctx, page, scale, version) }) {
			// Queue full. Blocking here would hold the engine lock
			// against the very workers that drain the queue, so drop
			// the request and retry once the pool catches up.
			e.endFetchLocked(page)
			e.scheduleDiscoveryLocked()
			break
		}
	}

	if e.tiler != nil && e.camera.Zoom >= TileZoomThreshold {
		e.tilePassLocked(vis, zones, version)
	} else {
		// Below the threshold any leftover tile overlays are stale.
		for _, p := range vis.element {
			if s := e.surfaces.get(p); s != nil {
				s.Tiles = nil
			}
		}
	}

	e.prefetchLocked(vis, scale, version)

	Logger().Debug("render pass",
		slog.Int("visible", len(vis.visible)),
		slog.Int("surfaces", e.surfaces.count()),
		slog.Int("queued", len(reqs)))
}

// beginFetchLocked registers an in-flight page fetch: the page enters
// the pending set and gets a per-fetch context whose cancel the sweep
// calls when the page scrolls out of the keep buffer. Caller holds mu.
func (e *Engine) beginFetchLocked(page int) context.Context {
	ctx, cancel := context.WithCancel(e.ctx)
	e.aborts[page] = cancel
	e.pending.Add(page)
	return ctx
}

// endFetchLocked retires an in-flight fetch, releasing its context.
// Caller holds mu.
func (e *Engine) endFetchLocked(page int) {
	if cancel, ok := e.aborts[page]; ok {
		delete(e.aborts, page)
		cancel()
	}
	e.pending.Remove(page)
}

// fetchPage runs on a worker: it resolves a page bitmap through the
// provider and hands the result back under the engine lock. With a
// dual-resolution provider the preview is applied first and the upgrade
// follows on the same worker; the fetch stays pending until the upgrade
// lands.
func (e *Engine) fetchPage(ctx context.Context, page int, scale float64, version uint64) {
	opts := RenderOptions{Scale: scale, Format: FormatPNG}

	var (
		img     PageImage
		upgrade UpgradeFunc
		err     error
	)
	if dual, ok := e.provider.(DualResolutionProvider); ok {
		img, upgrade, err = dual.PageImageDual(ctx, page, opts)
	} else {
		img, err = e.provider.PageImage(ctx, page, opts)
	}
	if err != nil || upgrade == nil {
		e.completePage(page, img, version, err, true)
		return
	}
	e.completePage(page, img, version, nil, false)

	final, err := upgrade(ctx)
	e.completePage(page, final, version, err, true)
}

// completePage applies a finished page render under the engine lock.
// Results from an outdated version, a closed engine, or a discardable
// error are dropped; decode failures purge the cache entry so the next
// pass re-fetches cleanly. final marks the last completion of the
// fetch, which retires it and arms a follow-up pass so the sweep can
// revisit pages it protected while the render was in flight.
func (e *Engine) completePage(page int, img PageImage, version uint64, err error, final bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if final {
		e.endFetchLocked(page)
	}
	if e.closed {
		return
	}
	if final {
		e.scheduleDiscoveryLocked()
	}
	if version != e.version {
		e.staleDropped++
		return
	}
	if err != nil {
		switch {
		case isDiscardable(err):
			e.staleDropped++
		case isDecodeFailure(err):
			e.images.purge(page)
			Logger().Warn("page decode failed",
				slog.Int("page", page), slog.Any("error", err))
		default:
			Logger().Warn("page render failed",
				slog.Int("page", page), slog.Any("error", err))
		}
		return
	}
	if img.Image == nil {
		return
	}
	e.images.put(page, img.Image, img.Scale)
	if s := e.surfaces.get(page); s != nil {
		// put may have kept a better-scale entry; display whichever won.
		if entry, ok := e.images.peek(page); ok {
			s.Image = entry.img
			s.ImageScale = entry.scale
		}
	}
}

// fetchText runs on a worker: the text layer loads independently of the
// bitmap and its failure never blocks display.
func (e *Engine) fetchText(page int, version uint64) {
	layer, err := e.provider.PageText(e.ctx, page)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.textWip.Remove(page)
	if e.closed || version != e.version {
		return
	}
	if err != nil {
		if !isDiscardable(err) {
			Logger().Debug("text layer unavailable",
				slog.Int("page", page), slog.Any("error", err))
		}
		return
	}
	if s := e.surfaces.get(page); s != nil {
		s.Text = &layer
	}
}

// tilePassLocked schedules tile renders for the on-screen pages at deep
// zoom. Cached tiles attach to their surfaces immediately; missing ones
// queue by priority, with the lookahead ring droppable under load.
// Caller holds mu.
func (e *Engine) tilePassLocked(vis visibleSet, zones bufferZones, version uint64) {
	scale := tileScaleFor(e.camera.Zoom, e.opts.pixelRatio)

	var reqs []tileRequest
	for _, p := range vis.visible {
		rect, ok := e.layout.PageRect(p)
		if !ok {
			continue
		}
		reqs = append(reqs, tilesIntersecting(p, rect, zones.visible, scale)...)
	}
	slices.SortFunc(reqs, func(a, b tileRequest) int {
		if a.priority != b.priority {
			return int(a.priority) - int(b.priority)
		}
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		return 0
	})

	for _, r := range reqs {
		s := e.surfaces.get(r.tile.Page)
		if s == nil {
			continue
		}
		key := r.tile.Key()
		if img, ok := e.tiles.get(key); ok {
			if s.Tiles == nil {
				s.Tiles = make(map[TileKey]image.Image)
			}
			s.Tiles[key] = img
			continue
		}
		if e.tiles.isPending(key) {
			continue
		}
		e.tiles.markPending(key, version)
		tile := r.tile
		if !e.pool.TrySubmit(func() { e.fetchTile(tile, version) }) {
			// No blocking submission while holding the engine lock;
			// the lookahead ring just drops, everything else retries.
			e.tiles.fail(key)
			if r.priority != TileLow {
				e.scheduleDiscoveryLocked()
			}
		}
	}
}

// fetchTile runs on a worker: renders one tile and applies it under the
// engine lock if still current.
func (e *Engine) fetchTile(tile Tile, version uint64) {
	img, err := e.tiler.RenderTile(e.ctx, tile)

	e.mu.Lock()
	defer e.mu.Unlock()
	key := tile.Key()
	if err != nil {
		e.tiles.fail(key)
		if !isDiscardable(err) {
			Logger().Debug("tile render failed",
				slog.Int("page", tile.Page),
				slog.Int("tx", tile.TX), slog.Int("ty", tile.TY),
				slog.Any("error", err))
		}
		return
	}
	if e.closed {
		e.tiles.fail(key)
		return
	}
	if !e.tiles.complete(key, img, version, e.version) {
		e.staleDropped++
		return
	}
	if s := e.surfaces.get(tile.Page); s != nil {
		if s.Tiles == nil {
			s.Tiles = make(map[TileKey]image.Image)
		}
		s.Tiles[key] = img
	}
}

// prefetchLocked queues speculative fetches beyond the render buffer.
// Prefetch work is droppable: when the pool's queues are full the
// candidate is simply skipped. Caller holds mu.
func (e *Engine) prefetchLocked(vis visibleSet, scale float64, version uint64) {
	if e.prefetch == nil || e.current == 0 {
		return
	}
	candidates := e.prefetch.Pages(e.layout, e.current, e.velocity)

	var hinted []int
	for _, p := range candidates {
		if p < 1 || p > e.pageCount || e.pending.Contains(p) {
			continue
		}
		if entry, ok := e.images.peek(p); ok && e.images.goodEnough(entry, scale) {
			continue
		}
		hinted = append(hinted, p)
		page := p
		ctx := e.beginFetchLocked(page)
		if !e.pool.TrySubmit(func() { e.fetchPage(ctx, page, scale, version) }) {
			e.endFetchLocked(page)
		}
	}

	if pf, ok := e.provider.(PagePrefetcher); ok && len(hinted) > 0 {
		pages := slices.Clone(hinted)
		e.pool.TrySubmit(func() { pf.PrefetchPages(e.ctx, pages) })
	}
}

// noteVelocity records the scroll velocity for prefetch direction bias.
func (e *Engine) noteVelocity(v Point) {
	e.mu.Lock()
	e.velocity = v
	e.mu.Unlock()
}
