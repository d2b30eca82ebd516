package overlay

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/Faultbox/garment-studio/internal/texture"
	gmath "github.com/Faultbox/garment-studio/pkg/math"
)

// ErrNoSurface is returned when stamping onto a texture without pixels.
var ErrNoSurface = errors.New("stamp target has no image")

// StampUV composites the billboard content onto a copy of surface, centered
// at the given UV coordinate. width is the decal width as a fraction of the
// texture width; the height follows the content's aspect ratio. The result
// is a new owned texture with the surface's wrap modes.
func StampUV(surface *texture.Texture, bb *Billboard, center gmath.Vec2, width float64) (*texture.Texture, error) {
	if surface == nil || surface.Image == nil || bb == nil || bb.Texture.Image == nil {
		return nil, ErrNoSurface
	}

	dst := texture.ToRGBA(surface.Image)
	out := image.NewRGBA(dst.Bounds())
	copy(out.Pix, dst.Pix)

	size := out.Bounds().Size()
	src := bb.Texture.Image
	sb := src.Bounds()

	w := max(1, int(math.Round(width*float64(size.X))))
	h := max(1, int(math.Round(float64(w)*float64(sb.Dy())/float64(sb.Dx()))))
	cx, cy := center.Pixel(size.X)
	// Pixel maps onto a square; rescale y for non-square surfaces.
	cy = cy * float64(size.Y) / float64(size.X)

	origin := image.Pt(int(math.Round(cx))-w/2, int(math.Round(cy))-h/2)
	rect := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}
	draw.CatmullRom.Scale(out, rect, src, sb, draw.Over, nil)

	tex := texture.New(surface.Name+"+decal", out, true)
	tex.WrapS, tex.WrapT = surface.WrapS, surface.WrapT
	return tex, nil
}
