package docview

import (
	"runtime"
	"time"
)

// FrameScheduler drives the engine's animation steps (inertia, smooth
// camera moves). The default implementation ticks at roughly 60 Hz; tests
// substitute a manual scheduler and step frames by hand.
type FrameScheduler interface {
	// Start begins invoking step once per frame until the returned stop
	// function is called. step receives the frame timestamp.
	Start(step func(now time.Time)) (stop func())
}

// tickerFrames is the default FrameScheduler, backed by a time.Ticker.
type tickerFrames struct {
	interval time.Duration
}

func (f tickerFrames) Start(step func(now time.Time)) (stop func()) {
	ticker := time.NewTicker(f.interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case now := <-ticker.C:
				step(now)
			case <-done:
				return
			}
		}
	}()
	var once bool
	return func() {
		if once {
			return
		}
		once = true
		ticker.Stop()
		close(done)
	}
}

// engineOptions collects the configurable knobs of an Engine.
type engineOptions struct {
	mode          DisplayMode
	pixelRatio    float64
	cacheSize     int
	tileCacheSize int
	concurrency   int
	gap           float64
	padding       float64
	columns       int
	defaultSize   PageSize
	pageSizes     []PageSize
	frames        FrameScheduler
	prefetch      PrefetchStrategy
	disableTiles  bool
}

func defaultOptions() engineOptions {
	workers := runtime.GOMAXPROCS(0)
	if workers > 6 {
		workers = 6
	}
	return engineOptions{
		mode:          ModeVerticalScroll,
		pixelRatio:    1,
		cacheSize:     PageCacheSize,
		tileCacheSize: TileCacheSize,
		concurrency:   workers,
		gap:           16,
		padding:       24,
		columns:       1,
		defaultSize:   DefaultPageSize,
		frames:        tickerFrames{interval: time.Second / 60},
	}
}

// Option configures an Engine at construction time.
type Option func(*engineOptions)

// WithDisplayMode sets the initial display mode. The default is vertical
// scroll.
func WithDisplayMode(mode DisplayMode) Option {
	return func(o *engineOptions) { o.mode = mode }
}

// WithPixelRatio sets the device pixel ratio used to pick render scales.
// Values at or below zero are ignored.
func WithPixelRatio(ratio float64) Option {
	return func(o *engineOptions) {
		if ratio > 0 {
			o.pixelRatio = ratio
		}
	}
}

// WithCacheSize sets the page image cache capacity in entries.
func WithCacheSize(pages int) Option {
	return func(o *engineOptions) {
		if pages > 0 {
			o.cacheSize = pages
		}
	}
}

// WithTileCacheSize sets the tile cache capacity in entries.
func WithTileCacheSize(tiles int) Option {
	return func(o *engineOptions) {
		if tiles > 0 {
			o.tileCacheSize = tiles
		}
	}
}

// WithConcurrency sets the number of render workers. The default is
// GOMAXPROCS capped at six.
func WithConcurrency(workers int) Option {
	return func(o *engineOptions) {
		if workers > 0 {
			o.concurrency = workers
		}
	}
}

// WithGap sets the spacing between adjacent pages in canvas units.
func WithGap(gap float64) Option {
	return func(o *engineOptions) {
		if gap >= 0 {
			o.gap = gap
		}
	}
}

// WithPadding sets the margin around the whole canvas in canvas units.
func WithPadding(padding float64) Option {
	return func(o *engineOptions) {
		if padding >= 0 {
			o.padding = padding
		}
	}
}

// WithSpreadColumns lays paginated mode out in fixed columns, two for a
// book-style spread. Grid modes manage their own column count.
func WithSpreadColumns(columns int) Option {
	return func(o *engineOptions) {
		if columns >= 1 {
			o.columns = columns
		}
	}
}

// WithPageSize sets the page size assumed before real sizes are known.
func WithPageSize(size PageSize) Option {
	return func(o *engineOptions) {
		if size.W > 0 && size.H > 0 {
			o.defaultSize = size
		}
	}
}

// WithPageSizes provides per-page sizes up front, indexed by page-1.
// Pages beyond the slice use the default size.
func WithPageSizes(sizes []PageSize) Option {
	return func(o *engineOptions) { o.pageSizes = sizes }
}

// WithFrameScheduler replaces the frame source driving animations.
func WithFrameScheduler(frames FrameScheduler) Option {
	return func(o *engineOptions) {
		if frames != nil {
			o.frames = frames
		}
	}
}

// WithPrefetchStrategy overrides the mode-derived prefetch strategy.
func WithPrefetchStrategy(strategy PrefetchStrategy) Option {
	return func(o *engineOptions) { o.prefetch = strategy }
}

// WithoutTiles disables the tile render path even when the provider
// supports it.
func WithoutTiles() Option {
	return func(o *engineOptions) { o.disableTiles = true }
}
