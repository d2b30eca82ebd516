// Package overlay rasterizes user content (one image, one text label) into
// camera-facing billboards anchored in front of the garment.
package overlay

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/texture"
	gmath "github.com/Faultbox/garment-studio/pkg/math"
)

// World-space conversion factors.
const (
	// PointSize converts a label size in points to world units.
	PointSize = 0.01
	// PixelSize converts image overlay pixels to world units.
	PixelSize = 0.001
)

// DefaultBaseWidth is the image overlay width in pixels at scale 1.
const DefaultBaseWidth = 200

// Overlay errors.
var (
	ErrEmptySource = errors.New("overlay source is empty")
	ErrBadScale    = errors.New("overlay scale must be positive")
	ErrBadDataURL  = errors.New("malformed data URL")
	ErrEmptyText   = errors.New("overlay text is empty")
	ErrTooLarge    = errors.New("overlay exceeds size limit")
)

// Limits bounds the rasters a placer will allocate.
type Limits struct {
	MaxScale     float64 // image scale factor
	MaxTextPt    float64 // label size in points
	MaxDimension int     // raster width or height in pixels
}

// DefaultLimits returns the limits used when none are set.
func DefaultLimits() Limits {
	return Limits{MaxScale: 10, MaxTextPt: 256, MaxDimension: 4096}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxScale <= 0 {
		l.MaxScale = d.MaxScale
	}
	if l.MaxTextPt <= 0 {
		l.MaxTextPt = d.MaxTextPt
	}
	if l.MaxDimension <= 0 {
		l.MaxDimension = d.MaxDimension
	}
	return l
}

func (l Limits) checkRaster(w, h int) error {
	if w > l.MaxDimension || h > l.MaxDimension {
		return fmt.Errorf("%w: %dx%d raster, limit %d", ErrTooLarge, w, h, l.MaxDimension)
	}
	return nil
}

// Fetcher loads the bytes behind a file path or remote URL.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// ImageContent is an image overlay request. Rotation is in degrees,
// clockwise; Offset moves the overlay in world units from the anchor.
type ImageContent struct {
	Source   string
	Scale    float64
	Rotation float64
	Offset   gmath.Vec2
}

// TextLabel is a text overlay request.
type TextLabel struct {
	Text   string
	Color  color.NRGBA
	SizePt float64
	Font   string
	Offset gmath.Vec2
}

// Kind names the overlay slot.
type Kind string

// Overlay kinds.
const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// Billboard is rasterized overlay content with its world-space size.
type Billboard struct {
	Kind    Kind
	Texture *texture.Texture
	Width   float32
	Height  float32
	Offset  gmath.Vec2
}

// WorldMatrix places the billboard at anchor+offset facing the camera.
// The unit quad [-0.5,0.5]^2 is scaled to the billboard size.
func (b *Billboard) WorldMatrix(anchor, camera gmath.Vec3) gmath.Mat4 {
	origin := anchor.Add(gmath.Vec3{X: b.Offset.X, Y: b.Offset.Y})
	z := camera.Sub(origin).Normalize()
	if z == (gmath.Vec3{}) {
		z = gmath.Vec3{Z: 1}
	}
	up := gmath.Vec3{Y: 1}
	x := up.Cross(z).Normalize()
	if x == (gmath.Vec3{}) {
		// camera straight above or below
		x = gmath.Vec3{X: 1}
	}
	y := z.Cross(x)
	return gmath.Basis(x.Scale(b.Width), y.Scale(b.Height), z, origin)
}

// Anchor returns the front-center point of a bounding box, where overlays sit.
func Anchor(bounds gmath.Box) gmath.Vec3 {
	c := bounds.Center()
	return gmath.Vec3{X: c.X, Y: c.Y, Z: bounds.Max.Z}
}

// Placer holds at most one image and one text billboard.
type Placer struct {
	fetch     Fetcher
	fonts     *FontSet
	baseWidth int
	limits    Limits
	log       *zap.Logger

	image *Billboard
	text  *Billboard
}

// NewPlacer creates a placer. fetch resolves non-data-URL image sources.
func NewPlacer(fetch Fetcher, fonts *FontSet, baseWidth int, log *zap.Logger) *Placer {
	if baseWidth <= 0 {
		baseWidth = DefaultBaseWidth
	}
	if fonts == nil {
		fonts = NewFontSet()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Placer{fetch: fetch, fonts: fonts, baseWidth: baseWidth, limits: DefaultLimits(), log: log}
}

// SetLimits replaces the raster limits. Zero fields keep their defaults.
func (p *Placer) SetLimits(l Limits) {
	p.limits = l.withDefaults()
}

// SetImage rasterizes c and replaces the current image overlay.
func (p *Placer) SetImage(ctx context.Context, c ImageContent) error {
	bb, err := p.RenderImage(ctx, c)
	if err != nil {
		return err
	}
	p.replace(&p.image, bb)
	return nil
}

// SetText rasterizes t and replaces the current text overlay.
func (p *Placer) SetText(t TextLabel) error {
	bb, err := p.RenderText(t)
	if err != nil {
		return err
	}
	p.replace(&p.text, bb)
	return nil
}

// Remove drops the overlay of the given kind.
func (p *Placer) Remove(k Kind) {
	switch k {
	case KindImage:
		p.replace(&p.image, nil)
	case KindText:
		p.replace(&p.text, nil)
	}
}

// Set installs an already rasterized billboard in its slot.
func (p *Placer) Set(bb *Billboard) {
	if bb.Kind == KindText {
		p.replace(&p.text, bb)
		return
	}
	p.replace(&p.image, bb)
}

// Billboards returns the active overlays, image first.
func (p *Placer) Billboards() []*Billboard {
	var out []*Billboard
	if p.image != nil {
		out = append(out, p.image)
	}
	if p.text != nil {
		out = append(out, p.text)
	}
	return out
}

// Release frees both overlays.
func (p *Placer) Release() {
	p.Remove(KindImage)
	p.Remove(KindText)
}

func (p *Placer) replace(slot **Billboard, bb *Billboard) {
	if *slot != nil {
		(*slot).Texture.Release()
	}
	*slot = bb
}

// RenderImage loads, scales and rotates image content without installing it.
// The width is baseWidth*Scale pixels with the aspect ratio preserved.
func (p *Placer) RenderImage(ctx context.Context, c ImageContent) (*Billboard, error) {
	if c.Source == "" {
		return nil, ErrEmptySource
	}
	if c.Scale <= 0 {
		return nil, ErrBadScale
	}
	if c.Scale > p.limits.MaxScale {
		return nil, fmt.Errorf("%w: scale %g, limit %g", ErrTooLarge, c.Scale, p.limits.MaxScale)
	}

	data, err := p.source(ctx, c.Source)
	if err != nil {
		return nil, err
	}
	src, err := texture.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("overlay image: %w", err)
	}

	b := src.Bounds()
	w := max(1, int(math.Round(float64(p.baseWidth)*c.Scale)))
	h := max(1, int(math.Round(float64(w)*float64(b.Dy())/float64(b.Dx()))))
	if err := p.limits.checkRaster(w, h); err != nil {
		return nil, err
	}

	var img image.Image = transform.Resize(src, w, h, transform.Linear)
	if r := math.Mod(c.Rotation, 360); r != 0 {
		img = transform.Rotate(img, r, &transform.RotationOptions{ResizeBounds: true})
	}

	rgba := texture.ToRGBA(img)
	size := rgba.Bounds().Size()
	p.log.Debug("image overlay rendered",
		zap.Int("width", size.X), zap.Int("height", size.Y), zap.Float64("rotation", c.Rotation))

	return &Billboard{
		Kind:    KindImage,
		Texture: texture.New("overlay:image", rgba, true),
		Width:   float32(float64(size.X) * PixelSize),
		Height:  float32(float64(size.Y) * PixelSize),
		Offset:  c.Offset,
	}, nil
}

func (p *Placer) source(ctx context.Context, ref string) ([]byte, error) {
	if IsDataURL(ref) {
		return DecodeDataURL(ref)
	}
	if p.fetch == nil {
		return nil, fmt.Errorf("no fetcher for overlay source %q", ref)
	}
	return p.fetch.Fetch(ctx, ref)
}

// IsDataURL reports whether ref is an inline data URL.
func IsDataURL(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// DecodeDataURL returns the payload of a "data:[<mime>][;base64],<data>" URL.
func DecodeDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, ErrBadDataURL
	}
	if !strings.HasSuffix(meta, ";base64") {
		return []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return data, nil
}
