package docview

import (
	"context"
	"image"
)

// RenderFormat selects the encoding a provider should use for page blobs
// it produces or caches internally.
type RenderFormat string

// Supported render formats.
const (
	FormatPNG  RenderFormat = "png"
	FormatJPEG RenderFormat = "jpeg"
	FormatWebP RenderFormat = "webp"
)

// RenderOptions describes one page image request. Identical options must
// yield identical images (idempotence), which is what makes provider-side
// caching sound.
type RenderOptions struct {
	// Scale is the requested render scale relative to 100%. The provider
	// may deliver a different effective scale (capped by its own limits);
	// the result reports what was actually rendered.
	Scale float64

	// DPI is the target dots-per-inch. Zero lets the provider choose
	// from Scale alone.
	DPI int

	// Format is the preferred blob encoding for providers that cache
	// encoded bytes. Zero value lets the provider choose.
	Format RenderFormat

	// Quality is the lossy-encoder quality 1..100, when Format is lossy.
	Quality int
}

// PageImage is a rendered page delivered by a content provider.
type PageImage struct {
	// Image is the decoded page bitmap.
	Image image.Image

	// Scale is the effective scale the bitmap was rendered at.
	Scale float64
}

// UpgradeFunc resolves the high-quality variant of a dual-resolution
// render. It may block; the scheduler runs it on a worker.
type UpgradeFunc func(ctx context.Context) (PageImage, error)

// TextRun is one positioned run of text on a page. Rect is in page
// coordinates at 100% zoom.
type TextRun struct {
	Text string
	Rect Rect
}

// TextLayer is the selectable text content of a page.
type TextLayer struct {
	Page int
	Runs []TextRun
}

// Plain returns the concatenated text of the layer.
func (t TextLayer) Plain() string {
	var s string
	for i, r := range t.Runs {
		if i > 0 {
			s += "\n"
		}
		s += r.Text
	}
	return s
}

// ContentProvider supplies page images and text layers to the engine.
//
// PageImage must be idempotent for identical parameters so results can be
// cached. Failures are non-fatal for that page this cycle: the engine
// keeps showing the last good content and the next visibility pass
// naturally re-requests the page.
//
// PageText is optional per page: its failure or absence never blocks
// image display. Providers without text should return an empty TextLayer.
//
// Implementations must be safe for concurrent use: the scheduler, the
// tile coordinator, and prefetch workers all call in from their own
// goroutines.
type ContentProvider interface {
	PageImage(ctx context.Context, page int, opts RenderOptions) (PageImage, error)
	PageText(ctx context.Context, page int) (TextLayer, error)
}

// DualResolutionProvider is an optional ContentProvider extension for the
// fast-preview path: a quick low-quality image to display immediately and
// an upgrade function that resolves the authoritative render.
type DualResolutionProvider interface {
	ContentProvider

	// PageImageDual returns a quick preview plus an upgrade. A nil
	// UpgradeFunc means the preview is already authoritative.
	PageImageDual(ctx context.Context, page int, opts RenderOptions) (PageImage, UpgradeFunc, error)
}

// PagePrefetcher is an optional ContentProvider extension letting the
// provider warm its own caches ahead of demand. Best-effort; errors are
// ignored.
type PagePrefetcher interface {
	PrefetchPages(ctx context.Context, pages []int)
}

// PageChangeNotifier is an optional ContentProvider extension notified
// when the centered page changes (for analytics or read-position sync).
type PageChangeNotifier interface {
	NotifyPageChange(page int)
}

// TileRenderer renders a fixed-size sub-region of a page at high zoom.
type TileRenderer interface {
	// RenderTile renders the page region described by the tile. The
	// returned image is TileSize x TileSize pixels (smaller on page
	// edges).
	RenderTile(ctx context.Context, tile Tile) (image.Image, error)
}

// TileRenderingProvider is an optional ContentProvider extension exposing
// a tile renderer. Providers that cannot render clipped regions simply do
// not implement it and the engine falls back to whole-page rendering.
type TileRenderingProvider interface {
	TileRenderer() (TileRenderer, bool)
}
