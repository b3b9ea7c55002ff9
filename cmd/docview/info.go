package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pdfprovider "github.com/gogpu/docview/provider/pdf"
)

var infoCmd = &cobra.Command{
	Use:   "info [input file]",
	Short: "Print document structure and page dimensions",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}

	provider, err := pdfprovider.Open(path,
		pdfprovider.WithWorkerCounts(1, 1, viper.GetInt("pdfium.max_workers")))
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer provider.Close()

	fmt.Printf("File:   %s (%s)\n", filepath.Base(path), humanize.Bytes(uint64(stat.Size())))
	fmt.Printf("Pages:  %s\n", humanize.Comma(int64(provider.PageCount())))

	sizes := provider.PageSizes()
	if len(sizes) == 0 {
		return nil
	}

	// Most documents are uniform; report the dominant size plus any
	// outliers.
	counts := make(map[[2]int]int)
	for _, s := range sizes {
		counts[[2]int{int(s.W), int(s.H)}]++
	}
	var domKey [2]int
	for k, n := range counts {
		if n > counts[domKey] {
			domKey = k
		}
	}
	fmt.Printf("Size:   %dx%d pt (%d of %d pages)\n",
		domKey[0], domKey[1], counts[domKey], len(sizes))
	if len(counts) > 1 {
		fmt.Printf("        %d other page size(s) present\n", len(counts)-1)
	}
	return nil
}
