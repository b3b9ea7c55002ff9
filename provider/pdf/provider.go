// Package pdf implements a docview.ContentProvider backed by PDFium,
// running the renderer in WebAssembly worker instances so no native
// library install is required.
//
// The provider memoizes rendered bitmaps in a sharded cache keyed by
// page and scale, so concurrent requests for the same render (engine
// fetch, prefetch, tile crop) collapse into one PDFium call's worth of
// work.
package pdf

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"

	"github.com/gogpu/docview"
	"github.com/gogpu/docview/cache"
)

const (
	instanceTimeout = 30 * time.Second

	// previewDivisor is how much cheaper the dual-resolution preview
	// renders than the requested scale.
	previewDivisor = 4

	// minPreviewScale keeps previews legible.
	minPreviewScale = 0.25

	// maxRenderScale caps a single whole-page render; tile requests
	// above it are rendered at the cap and resampled.
	maxRenderScale = 8.0
)

// config holds the tunable knobs of a Provider.
type config struct {
	minIdle       int
	maxIdle       int
	maxTotal      int
	cacheCapacity int
}

// Option configures a Provider.
type Option func(*config)

// WithWorkerCounts sets the PDFium WebAssembly instance pool sizes.
func WithWorkerCounts(minIdle, maxIdle, maxTotal int) Option {
	return func(c *config) {
		if minIdle > 0 {
			c.minIdle = minIdle
		}
		if maxIdle > 0 {
			c.maxIdle = maxIdle
		}
		if maxTotal > 0 {
			c.maxTotal = maxTotal
		}
	}
}

// WithCacheCapacity sets the per-shard capacity of the render memo cache.
func WithCacheCapacity(entries int) Option {
	return func(c *config) {
		if entries > 0 {
			c.cacheCapacity = entries
		}
	}
}

// renderKey memoizes one (page, scale) render. Scale is quantized to
// 1/256 so float noise cannot split cache entries.
type renderKey struct {
	page  int
	scale int32
}

func makeRenderKey(page int, scale float64) renderKey {
	return renderKey{page: page, scale: int32(math.Round(scale * 256))}
}

func renderKeyHasher(k renderKey) uint64 {
	return cache.Uint64Hasher(uint64(k.page)<<20 ^ uint64(uint32(k.scale)))
}

// Provider renders pages of one PDF document. It implements
// docview.ContentProvider plus the dual-resolution, prefetch, and tile
// extensions.
//
// Thread safety: safe for concurrent use. Renders run on PDFium pool
// instances; the memo cache absorbs duplicate requests.
type Provider struct {
	pool pdfium.Pool
	data []byte

	pageCount int
	sizes     []docview.PageSize

	renders *cache.ShardedCache[renderKey, image.Image]

	closeOnce sync.Once
	closeErr  error
}

// Open loads a PDF from disk.
func Open(path string, opts ...Option) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return OpenBytes(data, opts...)
}

// OpenBytes loads a PDF held in memory. The slice is retained; callers
// must not mutate it afterwards.
func OpenBytes(data []byte, opts ...Option) (*Provider, error) {
	cfg := config{minIdle: 1, maxIdle: 2, maxTotal: 4}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  cfg.minIdle,
		MaxIdle:  cfg.maxIdle,
		MaxTotal: cfg.maxTotal,
	})
	if err != nil {
		return nil, fmt.Errorf("init pdfium: %w", err)
	}

	p := &Provider{
		pool:    pool,
		data:    data,
		renders: cache.NewSharded[renderKey, image.Image](cfg.cacheCapacity, renderKeyHasher),
	}
	if err := p.readDocumentInfo(); err != nil {
		pool.Close()
		return nil, err
	}
	docview.Logger().Info("pdf opened",
		slog.Int("pages", p.pageCount),
		slog.Int("bytes", len(data)))
	return p, nil
}

// readDocumentInfo loads the page count and per-page sizes once.
func (p *Provider) readDocumentInfo() error {
	instance, err := p.pool.GetInstance(instanceTimeout)
	if err != nil {
		return fmt.Errorf("get pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &p.data})
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	countResp, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		return fmt.Errorf("page count: %w", err)
	}
	p.pageCount = countResp.PageCount

	p.sizes = make([]docview.PageSize, p.pageCount)
	for i := 0; i < p.pageCount; i++ {
		sizeResp, err := instance.GetPageSize(&requests.GetPageSize{
			Page: requests.Page{
				ByIndex: &requests.PageByIndex{Document: doc.Document, Index: i},
			},
		})
		if err != nil {
			p.sizes[i] = docview.DefaultPageSize
			continue
		}
		p.sizes[i] = docview.PageSize{W: sizeResp.Width, H: sizeResp.Height}
	}
	return nil
}

// PageCount returns the number of pages in the document.
func (p *Provider) PageCount() int { return p.pageCount }

// PageSizes returns the page dimensions in points, indexed by page-1.
func (p *Provider) PageSizes() []docview.PageSize { return p.sizes }

// PageImage implements docview.ContentProvider.
func (p *Provider) PageImage(ctx context.Context, page int, opts docview.RenderOptions) (docview.PageImage, error) {
	scale := clampScale(opts.Scale)
	img, err := p.renderScaled(ctx, page, scale)
	if err != nil {
		return docview.PageImage{}, err
	}
	return docview.PageImage{Image: img, Scale: scale}, nil
}

// PageImageDual implements docview.DualResolutionProvider: a cheap
// preview renders first, the upgrade resolves the full-scale bitmap.
func (p *Provider) PageImageDual(ctx context.Context, page int, opts docview.RenderOptions) (docview.PageImage, docview.UpgradeFunc, error) {
	scale := clampScale(opts.Scale)
	previewScale := math.Max(scale/previewDivisor, minPreviewScale)
	if previewScale >= scale {
		img, err := p.renderScaled(ctx, page, scale)
		if err != nil {
			return docview.PageImage{}, nil, err
		}
		return docview.PageImage{Image: img, Scale: scale}, nil, nil
	}

	preview, err := p.renderScaled(ctx, page, previewScale)
	if err != nil {
		return docview.PageImage{}, nil, err
	}
	upgrade := func(ctx context.Context) (docview.PageImage, error) {
		img, err := p.renderScaled(ctx, page, scale)
		if err != nil {
			return docview.PageImage{}, err
		}
		return docview.PageImage{Image: img, Scale: scale}, nil
	}
	return docview.PageImage{Image: preview, Scale: previewScale}, upgrade, nil
}

// PageText implements docview.ContentProvider. Runs carry page-space
// rectangles so the engine can hit-test selections.
func (p *Provider) PageText(ctx context.Context, page int) (docview.TextLayer, error) {
	if err := p.checkPage(ctx, page); err != nil {
		return docview.TextLayer{}, err
	}
	instance, err := p.pool.GetInstance(instanceTimeout)
	if err != nil {
		return docview.TextLayer{}, fmt.Errorf("get pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &p.data})
	if err != nil {
		return docview.TextLayer{}, fmt.Errorf("open document: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	pageRef := requests.Page{
		ByIndex: &requests.PageByIndex{Document: doc.Document, Index: page - 1},
	}

	structured, err := instance.GetPageTextStructured(&requests.GetPageTextStructured{
		Page: pageRef,
		Mode: requests.GetPageTextStructuredModeRects,
	})
	if err == nil && len(structured.Rects) > 0 {
		pageH := docview.DefaultPageSize.H
		if page-1 < len(p.sizes) {
			pageH = p.sizes[page-1].H
		}
		layer := docview.TextLayer{Page: page}
		for _, r := range structured.Rects {
			text := strings.TrimSpace(r.Text)
			if text == "" {
				continue
			}
			pos := r.PointPosition
			// PDF rects are bottom-left origin; flip to top-left.
			layer.Runs = append(layer.Runs, docview.TextRun{
				Text: text,
				Rect: docview.Rect{
					X: pos.Left,
					Y: pageH - pos.Top,
					W: pos.Right - pos.Left,
					H: pos.Top - pos.Bottom,
				},
			})
		}
		return layer, nil
	}

	// Fall back to the flat text dump.
	textResp, err := instance.GetPageText(&requests.GetPageText{Page: pageRef})
	if err != nil {
		return docview.TextLayer{}, fmt.Errorf("page text: %w", err)
	}
	layer := docview.TextLayer{Page: page}
	if text := strings.TrimSpace(textResp.Text); text != "" {
		layer.Runs = []docview.TextRun{{Text: text}}
	}
	return layer, nil
}

// PrefetchPages implements docview.PagePrefetcher by warming the render
// memo at base scale. Errors are swallowed; prefetch is best effort.
func (p *Provider) PrefetchPages(ctx context.Context, pages []int) {
	for _, page := range pages {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.renderScaled(ctx, page, 1); err != nil {
			docview.Logger().Debug("prefetch render failed",
				slog.Int("page", page), slog.Any("error", err))
		}
	}
}

// TileRenderer implements docview.TileRenderingProvider.
func (p *Provider) TileRenderer() (docview.TileRenderer, bool) { return p, true }

// RenderTile implements docview.TileRenderer by cropping the tile region
// out of a memoized whole-page render. Scales above maxRenderScale are
// rendered at the cap and resampled up, trading sharpness for memory.
func (p *Provider) RenderTile(ctx context.Context, tile docview.Tile) (image.Image, error) {
	renderScale := math.Min(tile.Scale, maxRenderScale)
	full, err := p.renderScaled(ctx, tile.Page, renderScale)
	if err != nil {
		return nil, err
	}

	crop := image.Rect(
		int(tile.PageRect.X*renderScale),
		int(tile.PageRect.Y*renderScale),
		int(math.Ceil(tile.PageRect.MaxX()*renderScale)),
		int(math.Ceil(tile.PageRect.MaxY()*renderScale)),
	)
	crop = crop.Intersect(full.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("tile %d/%d,%d outside page: %w",
			tile.Page, tile.TX, tile.TY, docview.ErrAborted)
	}
	out := imaging.Crop(full, crop)

	if tile.Scale > renderScale {
		w := int(math.Round(tile.PageRect.W * tile.Scale))
		h := int(math.Round(tile.PageRect.H * tile.Scale))
		out = imaging.Resize(out, w, h, imaging.Lanczos)
	}
	return out, nil
}

// ExportPage renders a page at the given scale and encodes it to w.
// Quality applies to the lossy formats and ranges 1..100.
func (p *Provider) ExportPage(ctx context.Context, w io.Writer, page int, scale float64, format docview.RenderFormat, quality int) error {
	img, err := p.renderScaled(ctx, page, clampScale(scale))
	if err != nil {
		return err
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	switch format {
	case docview.FormatWebP:
		return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: float32(quality)})
	case docview.FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case docview.FormatPNG:
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// Close releases the PDFium worker pool. Idempotent.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		p.renders.Clear()
		p.closeErr = p.pool.Close()
	})
	return p.closeErr
}

// renderScaled resolves one whole-page bitmap through the memo cache.
func (p *Provider) renderScaled(ctx context.Context, page int, scale float64) (image.Image, error) {
	if err := p.checkPage(ctx, page); err != nil {
		return nil, err
	}
	key := makeRenderKey(page, scale)
	if img, ok := p.renders.Get(key); ok {
		return img, nil
	}

	instance, err := p.pool.GetInstance(instanceTimeout)
	if err != nil {
		return nil, fmt.Errorf("get pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &p.data})
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	rendered, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{Document: doc.Document, Index: page - 1},
		},
		DPI: int(math.Round(72 * scale)),
	})
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	if rendered.Result.Image == nil {
		return nil, fmt.Errorf("render page %d: empty bitmap: %w", page, docview.ErrDecode)
	}

	img := rendered.Result.Image
	p.renders.Set(key, img)
	return img, nil
}

// checkPage validates the page number and context before touching the
// pool.
func (p *Provider) checkPage(ctx context.Context, page int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if page < 1 || page > p.pageCount {
		return fmt.Errorf("page %d out of range 1..%d", page, p.pageCount)
	}
	return nil
}

func clampScale(scale float64) float64 {
	if scale <= 0 {
		return 1
	}
	return math.Min(scale, maxRenderScale)
}
