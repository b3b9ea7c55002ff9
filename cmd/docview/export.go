package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/docview"
	pdfprovider "github.com/gogpu/docview/provider/pdf"
)

var (
	exportPage    int
	exportOutput  string
	exportScale   float64
	exportQuality int
)

var exportCmd = &cobra.Command{
	Use:   "export [input file]",
	Short: "Render one page to an image file",
	Long: `Render a single page through the provider pipeline and encode it to
PNG, JPEG, or WebP. The format follows the output file extension.

Examples:
  docview export book.pdf -p 12 -o page12.webp
  docview export scan.pdf -p 1 -o cover.png --scale 2`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntVarP(&exportPage, "page", "p", 1, "Page to render")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output image path (required)")
	exportCmd.Flags().Float64Var(&exportScale, "scale", 1, "Render scale")
	exportCmd.Flags().IntVar(&exportQuality, "quality", 85, "Quality for lossy formats (1-100)")

	exportCmd.MarkFlagRequired("output")
}

func formatFromExtension(path string) (docview.RenderFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return docview.FormatPNG, nil
	case ".jpg", ".jpeg":
		return docview.FormatJPEG, nil
	case ".webp":
		return docview.FormatWebP, nil
	default:
		return "", fmt.Errorf("cannot infer format from %q (use .png, .jpg, or .webp)", filepath.Ext(path))
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := formatFromExtension(exportOutput)
	if err != nil {
		return err
	}

	provider, err := pdfprovider.Open(args[0],
		pdfprovider.WithWorkerCounts(1, 1, viper.GetInt("pdfium.max_workers")))
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer provider.Close()

	out, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	if err := provider.ExportPage(cmd.Context(), out, exportPage, exportScale, format, exportQuality); err != nil {
		return fmt.Errorf("export page %d: %w", exportPage, err)
	}
	fmt.Printf("Wrote page %d of %s to %s\n", exportPage, filepath.Base(args[0]), exportOutput)
	return nil
}
