package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/logger"
	"github.com/Faultbox/garment-studio/internal/material"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/texture"
	gmath "github.com/Faultbox/garment-studio/pkg/math"
)

var (
	gradientResolution int
	gradientName       string

	stampU, stampV float64
	stampWidth     float64
	stampText      string
	stampColor     string
	stampSize      float64
	stampName      string
)

var gradientCmd = &cobra.Command{
	Use:   "gradient <spec>",
	Short: "Bake a color or linear-gradient spec to a square texture",
	Long: `Examples:
  texbake gradient "#336699"
  texbake gradient "linear-gradient(45deg, #ff0000, #0000ff 80%)" --resolution 1024`,
	Args: cobra.ExactArgs(1),
	RunE: runGradient,
}

var stampCmd = &cobra.Command{
	Use:   "stamp <texture> [image]",
	Short: "Composite an image or text decal onto a texture",
	Long: `The decal is centered at (--u, --v) and spans --width of the texture
width. Pass an image reference, or --text for a text label.

Examples:
  texbake stamp shirt_diffuse.png logo.png --u 0.5 --v 0.6 --width 0.25
  texbake stamp shirt_diffuse.png --text "TEAM" --color "#ffffff" --size 48`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runStamp,
}

func init() {
	rootCmd.AddCommand(gradientCmd, stampCmd)

	gradientCmd.Flags().IntVar(&gradientResolution, "resolution", 512, "texture size in pixels")
	gradientCmd.Flags().StringVar(&gradientName, "name", "gradient", "output file name without extension")

	stampCmd.Flags().Float64Var(&stampU, "u", 0.5, "decal center U")
	stampCmd.Flags().Float64Var(&stampV, "v", 0.5, "decal center V")
	stampCmd.Flags().Float64Var(&stampWidth, "width", 0.25, "decal width as a fraction of the texture width")
	stampCmd.Flags().StringVar(&stampText, "text", "", "stamp a text label instead of an image")
	stampCmd.Flags().StringVar(&stampColor, "color", "#000000", "text color")
	stampCmd.Flags().Float64Var(&stampSize, "size", 32, "text size in points")
	stampCmd.Flags().StringVar(&stampName, "name", "stamped", "output file name without extension")
}

func runGradient(cmd *cobra.Command, args []string) error {
	spec, err := material.ParseColorSpec(args[0])
	if err != nil {
		return err
	}
	var tex *texture.Texture
	if spec.Kind == material.KindSolid {
		tex = texture.NewSolid(spec.String(), max(1, gradientResolution), spec.Color)
	} else {
		tex, err = material.NewSynthesizer(gradientResolution, logger.Named("material")).Bake(spec)
		if err != nil {
			return err
		}
	}
	defer tex.Release()

	blob, err := capture.Encode(tex.Image, "png", 1)
	if err != nil {
		return err
	}
	return writeBlob(cmd, gradientName, blob)
}

func runStamp(cmd *cobra.Command, args []string) error {
	if (len(args) == 2) == (stampText != "") {
		return fmt.Errorf("pass either an image or --text")
	}

	m := newAssets()
	defer m.Close()

	data, err := m.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	surface, err := texture.Load(args[0], data)
	if err != nil {
		return err
	}

	placer := overlay.NewPlacer(m, nil, 0, logger.Named("overlay"))
	var bb *overlay.Billboard
	if stampText != "" {
		c, err := material.ParseColor(stampColor)
		if err != nil {
			return err
		}
		bb, err = placer.RenderText(overlay.TextLabel{Text: stampText, Color: c, SizePt: stampSize})
		if err != nil {
			return err
		}
	} else {
		bb, err = placer.RenderImage(cmd.Context(), overlay.ImageContent{Source: args[1], Scale: 1})
		if err != nil {
			return err
		}
	}
	defer bb.Texture.Release()

	out, err := overlay.StampUV(surface, bb, gmath.Vec2{X: float32(stampU), Y: float32(stampV)}, stampWidth)
	if err != nil {
		return err
	}
	defer out.Release()

	blob, err := capture.Encode(out.Image, "png", 1)
	if err != nil {
		return err
	}
	return writeBlob(cmd, stampName, blob)
}
