// Package docview provides a viewport virtualization and tiered rendering
// engine for very long, paginated documents.
//
// # Overview
//
// docview keeps a bounded working set of page surfaces in memory while a host
// application pans and zooms across documents with hundreds to thousands of
// pages. The engine owns the camera model, the page-layout calculator, the
// visible/render/keep buffering logic, a priority render scheduler with
// version-stamped cancellation, LRU image/tile caches, and a gesture-to-camera
// controller with inertial panning.
//
// Producing the rasterized page image itself is deliberately out of scope:
// images and text layers are supplied by a [ContentProvider] collaborator
// (see provider/pdf for a PDFium-backed reference implementation).
//
// # Quick Start
//
//	import "github.com/gogpu/docview"
//
//	eng, err := docview.New(provider, pageCount,
//	    docview.WithPixelRatio(2),
//	    docview.WithDisplayMode(docview.ModeVerticalScroll),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Destroy()
//
//	eng.SetViewport(1000, 800)
//	eng.GoToPage(42)
//
// # Architecture
//
// The library is organized into:
//   - Public API: Engine, Camera, Layout, DisplayMode, ContentProvider
//   - Internal: cache (LRU), parallel (worker pool, pending-page bitmap)
//   - Providers: provider/pdf (PDFium-backed content provider)
//
// # Coordinate Systems
//
// Canvas space is the fixed virtual coordinate system in which page layouts
// never move. Screen space is canvas space transformed by the camera:
//
//	screen = (canvas + camera.XY) * camera.Zoom
//
// Origin (0,0) is top-left, X increases right, Y increases down.
//
// # Concurrency
//
// Engine state is mutated sequentially under a single lock. Page fetches run
// concurrently on a bounded worker pool; every completion re-validates its
// render version and visibility before touching shared state, so stale results
// are discarded. Fetches for pages that scroll out of the keep buffer are
// additionally cancelled through their per-fetch context.
package docview

// Version is the current version of the library.
const Version = "0.1.0"
