package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/docview"
	pdfprovider "github.com/gogpu/docview/provider/pdf"
)

var (
	viewMode     string
	viewZoom     float64
	viewFrom     int
	viewTo       int
	viewStepWait time.Duration
)

var viewCmd = &cobra.Command{
	Use:   "view [input file]",
	Short: "Run a headless scripted viewing session",
	Long: `Open a document, walk the camera across a page range, and report how
the engine's surface pool and caches behave along the way.

Examples:
  docview view book.pdf --from 1 --to 50
  docview view atlas.pdf --mode auto-grid --zoom 0.2
  docview view scan.pdf --mode paginated --zoom 2 --from 10 --to 20`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().StringVar(&viewMode, "mode", "", "Display mode (paginated, horizontal-scroll, vertical-scroll, auto-grid, canvas)")
	viewCmd.Flags().Float64Var(&viewZoom, "zoom", 1.0, "Zoom factor")
	viewCmd.Flags().IntVar(&viewFrom, "from", 1, "First page to visit")
	viewCmd.Flags().IntVar(&viewTo, "to", 0, "Last page to visit (0 = last page)")
	viewCmd.Flags().DurationVar(&viewStepWait, "settle", 150*time.Millisecond, "Wait per step for renders to settle")
}

func runView(cmd *cobra.Command, args []string) error {
	modeName := viewMode
	if modeName == "" {
		modeName = viper.GetString("engine.mode")
	}
	mode, ok := docview.ParseDisplayMode(modeName)
	if !ok {
		return fmt.Errorf("unknown display mode %q", modeName)
	}

	provider, err := pdfprovider.Open(args[0],
		pdfprovider.WithWorkerCounts(1, 2, viper.GetInt("pdfium.max_workers")))
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer provider.Close()

	engine, err := docview.New(provider, provider.PageCount(),
		engineOptionsFromConfig(mode)...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer engine.Destroy()

	if err := engine.SetViewport(
		viper.GetFloat64("viewport.width"),
		viper.GetFloat64("viewport.height")); err != nil {
		return err
	}
	if err := engine.SetPageSizes(provider.PageSizes()); err != nil {
		return err
	}
	if viewZoom != 1 {
		if err := engine.SetZoom(viewZoom); err != nil {
			return err
		}
	}

	last := viewTo
	if last <= 0 || last > provider.PageCount() {
		last = provider.PageCount()
	}
	if viewFrom < 1 {
		viewFrom = 1
	}

	start := time.Now()
	for page := viewFrom; page <= last; page++ {
		if err := engine.GoToPage(page); err != nil {
			return err
		}
		time.Sleep(viewStepWait)

		stats := engine.Stats()
		rendered := 0
		for _, s := range engine.Surfaces() {
			if s.Rendered() {
				rendered++
			}
		}
		fmt.Printf("page %4d | surfaces %2d (rendered %2d) | cache %3d/%3d hit %5.1f%% | pending %d\n",
			page, stats.Surfaces, rendered,
			stats.ImageCache.Len, stats.ImageCache.Capacity,
			stats.ImageCache.HitRate*100, stats.PendingRenders)
	}

	final := engine.Stats()
	fmt.Printf("\nVisited %s pages in %s\n",
		humanize.Comma(int64(last-viewFrom+1)), time.Since(start).Round(time.Millisecond))
	fmt.Printf("Surfaces created: %s, destroyed: %s\n",
		humanize.Comma(int64(final.SurfacesCreated)),
		humanize.Comma(int64(final.SurfacesDestroyed)))
	fmt.Printf("Image cache: %d entries, %s hits, %s misses, %s evictions\n",
		final.ImageCache.Len,
		humanize.Comma(int64(final.ImageCache.Hits)),
		humanize.Comma(int64(final.ImageCache.Misses)),
		humanize.Comma(int64(final.ImageCache.Evictions)))
	fmt.Printf("Stale results dropped: %s\n", humanize.Comma(int64(final.StaleDropped)))
	return nil
}
