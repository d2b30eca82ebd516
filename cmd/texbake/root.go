package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/assets"
	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/logger"
	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/pkg/formats"
)

var (
	outDir    string
	logLevel  string
	assetDirs []string
)

var rootCmd = &cobra.Command{
	Use:   "texbake",
	Short: "Bake garment textures and UV layouts to image files",
	Long: `texbake runs the studio's texture tools without a window:
  - uvmap:    rasterize the UV wireframe of every material slot
  - textures: write the surface texture of every material slot
  - gradient: bake a color or linear-gradient spec to a square texture
  - stamp:    composite an image or text decal onto a texture at a UV point`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.InitWithFileConfig(logLevel, logger.FileConfig{}, true)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "output directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSliceVar(&assetDirs, "asset-dir", nil, "directories searched for relative references")
}

func newAssets() *assets.Manager {
	return assets.NewManager(assets.Options{Dirs: assetDirs, Logger: logger.Named("assets")})
}

// loadScene fetches and builds a model from a path or URL.
func loadScene(ctx context.Context, m *assets.Manager, ref string) (*scene.Node, error) {
	data, err := m.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	model, err := formats.Load(path.Base(filepath.ToSlash(ref)), data, m.Resolver(ctx, ref))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ref, err)
	}
	return scene.Build(model, logger.Named("scene"))
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// slug makes a name safe for use in a file name.
func slug(s string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return "unnamed"
	}
	return s
}

func writeBlob(cmd *cobra.Command, name string, blob capture.Blob) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	p := filepath.Join(outDir, name+"."+blob.Ext)
	if err := os.WriteFile(p, blob.Data, 0644); err != nil {
		return err
	}
	logger.Debug("wrote file", zap.String("path", p), zap.Int("bytes", len(blob.Data)))
	fmt.Fprintln(cmd.OutOrStdout(), p)
	return nil
}
