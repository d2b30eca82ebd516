package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/extract"
	"github.com/Faultbox/garment-studio/internal/logger"
)

var (
	uvResolution  int
	uvGrid        bool
	uvLineWidth   float64
	uvStride      int
	texResolution int
)

var uvmapCmd = &cobra.Command{
	Use:   "uvmap <model>",
	Short: "Rasterize the UV wireframe of every material slot",
	Long: `Writes one PNG per mesh/material slot that carries texture coordinates.

Examples:
  texbake uvmap shirt.glb -o out
  texbake uvmap shirt.obj --resolution 2048 --grid --stride 4`,
	Args: cobra.ExactArgs(1),
	RunE: runUVMap,
}

var texturesCmd = &cobra.Command{
	Use:   "textures <model>",
	Short: "Write the surface texture of every material slot",
	Long: `Writes the authored map of each slot, or a flat canvas of its base
color when the slot has none.

Examples:
  texbake textures shirt.glb -o out --resolution 256`,
	Args: cobra.ExactArgs(1),
	RunE: runTextures,
}

func init() {
	rootCmd.AddCommand(uvmapCmd, texturesCmd)

	uvmapCmd.Flags().IntVar(&uvResolution, "resolution", 1024, "UV map size in pixels")
	uvmapCmd.Flags().BoolVar(&uvGrid, "grid", false, "draw an 8x8 reference grid")
	uvmapCmd.Flags().Float64Var(&uvLineWidth, "line-width", 1, "wireframe stroke width")
	uvmapCmd.Flags().IntVar(&uvStride, "stride", 1, "draw every Nth triangle")

	texturesCmd.Flags().IntVar(&texResolution, "resolution", 512, "flat color canvas size in pixels")
}

func extractModel(cmd *cobra.Command, ref string, opts extract.Options) (*extract.Result, func(), error) {
	m := newAssets()
	root, err := loadScene(cmd.Context(), m, ref)
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	res, err := extract.New(opts, logger.Named("extract")).Extract(root)
	if err != nil {
		root.Release()
		m.Close()
		return nil, nil, err
	}
	if res.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d mesh(es) skipped: %v\n", res.Failures, res.Err)
	}
	return res, func() {
		res.Release()
		root.Release()
		m.Close()
	}, nil
}

func runUVMap(cmd *cobra.Command, args []string) error {
	opts := extract.DefaultOptions()
	opts.UVMapResolution = uvResolution
	opts.ShowGrid = uvGrid
	opts.UVLineWidth = uvLineWidth
	opts.TriangleStride = uvStride

	res, done, err := extractModel(cmd, args[0], opts)
	if err != nil {
		return err
	}
	defer done()

	if len(res.UVMaps) == 0 {
		return fmt.Errorf("%s has no texture coordinates", args[0])
	}
	for i, uv := range res.UVMaps {
		blob, err := capture.Encode(uv.Image, "png", 1)
		if err != nil {
			return err
		}
		if err := writeBlob(cmd, fmt.Sprintf("%02d_%s_%s_uv", i, slug(uv.Node), slug(uv.Name)), blob); err != nil {
			return err
		}
	}
	return nil
}

func runTextures(cmd *cobra.Command, args []string) error {
	opts := extract.DefaultOptions()
	opts.TextureResolution = texResolution

	res, done, err := extractModel(cmd, args[0], opts)
	if err != nil {
		return err
	}
	defer done()

	for i, t := range res.Textures {
		if t.Texture.Image == nil {
			continue
		}
		blob, err := capture.Encode(t.Texture.Image, "png", 1)
		if err != nil {
			return err
		}
		if err := writeBlob(cmd, fmt.Sprintf("%02d_%s_%s", i, slug(t.Node), slug(t.Name)), blob); err != nil {
			return err
		}
	}
	return nil
}
