package scene

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/Faultbox/garment-studio/internal/texture"
)

// BackgroundType selects how the backdrop is drawn.
type BackgroundType string

// Background types.
const (
	BackgroundColor       BackgroundType = "color"
	BackgroundImage       BackgroundType = "image"
	BackgroundEnvironment BackgroundType = "environment"
)

// Background is the scene backdrop. Value holds the color, image
// reference or environment preset name it was built from.
type Background struct {
	Type  BackgroundType
	Value string
	Color color.NRGBA
	Image *texture.Texture
}

// DefaultBackground is a neutral light gray.
func DefaultBackground() Background {
	return Background{Type: BackgroundColor, Value: "#f0f0f0", Color: color.NRGBA{0xf0, 0xf0, 0xf0, 0xff}}
}

// environmentColors approximates the studio environment presets with
// a flat clear color; image-based lighting is left to the renderer.
var environmentColors = map[string]color.NRGBA{
	"studio":    {0xe8, 0xe8, 0xe8, 0xff},
	"city":      {0x9a, 0xa5, 0xb1, 0xff},
	"sunset":    {0xf4, 0xa2, 0x61, 0xff},
	"dawn":      {0xf6, 0xd6, 0xc8, 0xff},
	"night":     {0x1b, 0x1f, 0x2e, 0xff},
	"warehouse": {0x8c, 0x7b, 0x6a, 0xff},
	"forest":    {0x5b, 0x7a, 0x4f, 0xff},
	"apartment": {0xd9, 0xcf, 0xc1, 0xff},
	"park":      {0x9c, 0xc5, 0xa1, 0xff},
	"lobby":     {0xc9, 0xb8, 0x9f, 0xff},
}

// ErrUnknownBackground is returned for unknown types and presets.
var ErrUnknownBackground = errors.New("unknown background")

// EnvironmentColor returns the clear color for a named environment preset.
func EnvironmentColor(name string) (color.NRGBA, error) {
	c, ok := environmentColors[name]
	if !ok {
		return color.NRGBA{}, fmt.Errorf("%w: environment %q", ErrUnknownBackground, name)
	}
	return c, nil
}

// ParseBackgroundType validates a background type string.
func ParseBackgroundType(s string) (BackgroundType, error) {
	switch t := BackgroundType(s); t {
	case BackgroundColor, BackgroundImage, BackgroundEnvironment:
		return t, nil
	default:
		return "", fmt.Errorf("%w: type %q", ErrUnknownBackground, s)
	}
}
