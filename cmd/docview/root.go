package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/docview"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "docview",
	Short: "Inspect and exercise the docview rendering engine on PDF documents",
	Long: `docview is a headless harness around the docview viewport engine.

It opens PDF documents through the PDFium-backed provider and drives the
same camera, layout, and render scheduling a host application would, so
cache behavior and virtualization can be measured from the command line.`,
	Version:           docview.Version,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default searches . and $HOME/.docview)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	viper.SetDefault("viewport.width", 800)
	viper.SetDefault("viewport.height", 600)
	viper.SetDefault("engine.mode", "vertical-scroll")
	viper.SetDefault("engine.cache_pages", docview.PageCacheSize)
	viper.SetDefault("engine.pixel_ratio", 1.0)
	viper.SetDefault("pdfium.max_workers", 4)
}

func setup(cmd *cobra.Command, args []string) error {
	viper.SetEnvPrefix("DOCVIEW")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.docview")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	docview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
	return nil
}

// engineOptionsFromConfig builds engine options from viper settings.
func engineOptionsFromConfig(mode docview.DisplayMode) []docview.Option {
	return []docview.Option{
		docview.WithDisplayMode(mode),
		docview.WithCacheSize(viper.GetInt("engine.cache_pages")),
		docview.WithPixelRatio(viper.GetFloat64("engine.pixel_ratio")),
	}
}
