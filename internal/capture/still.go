// Package capture turns rendered frames into still images and video clips.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
)

// Still export errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrEmptyFrame        = errors.New("frame source returned no pixels")
	ErrNoSource          = errors.New("no frame source")
	ErrTooLarge          = errors.New("requested size exceeds limit")
)

// Defaults for still export.
const (
	DefaultQuality    = 0.9
	DefaultResolution = "1920x1080"
	// DefaultMaxDimension bounds each side of an exported still.
	DefaultMaxDimension = 8192
)

// FrameSource yields the currently rendered frame.
type FrameSource interface {
	Capture() (*image.RGBA, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func() (*image.RGBA, error)

// Capture calls f.
func (f FrameSourceFunc) Capture() (*image.RGBA, error) { return f() }

// Blob is an encoded artifact.
type Blob struct {
	Data []byte
	MIME string
	Ext  string
}

// StillOptions configures ExportStill.
type StillOptions struct {
	Format     string  // png, jpeg or webp
	Quality    float64 // 0..1, ignored for png
	Resolution string  // "WxH"; empty keeps the frame size
	Watermark  string
	// MaxDimension caps each side of Resolution; 0 uses DefaultMaxDimension.
	MaxDimension int
}

// ParseResolution parses "WxH" with sides up to DefaultMaxDimension.
func ParseResolution(s string) (int, int, error) {
	return ParseResolutionLimit(s, DefaultMaxDimension)
}

// ParseResolutionLimit parses "WxH" and rejects sides above limit with
// ErrTooLarge. A non-positive limit means DefaultMaxDimension.
func ParseResolutionLimit(s string, limit int) (int, int, error) {
	if limit <= 0 {
		limit = DefaultMaxDimension
	}
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(ws))
	h, errH := strconv.Atoi(strings.TrimSpace(hs))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	if w > limit || h > limit {
		return 0, 0, fmt.Errorf("%w: %dx%d exceeds %d px per side", ErrTooLarge, w, h, limit)
	}
	return w, h, nil
}

// ExportStill captures one frame, rescales it and encodes it.
func ExportStill(ctx context.Context, src FrameSource, opts StillOptions) (Blob, error) {
	if src == nil {
		return Blob{}, ErrNoSource
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return Blob{}, err
	}
	w, h := 0, 0
	if opts.Resolution != "" {
		// validated before the frame is captured or any buffer allocated
		if w, h, err = ParseResolutionLimit(opts.Resolution, opts.MaxDimension); err != nil {
			return Blob{}, err
		}
	}

	frame, err := src.Capture()
	if err != nil {
		return Blob{}, fmt.Errorf("capturing frame: %w", err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return Blob{}, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	out := frame
	if w > 0 {
		out = Resample(frame, w, h)
	}
	if opts.Watermark != "" {
		out = Watermark(out, opts.Watermark)
	}

	blob, err := Encode(out, format, opts.Quality)
	if err != nil {
		return Blob{}, err
	}
	stillsExported(ctx, format)
	return blob, nil
}

// Resample scales img to w×h with Catmull-Rom filtering. The aspect ratio
// follows the target, as a canvas drawImage would.
func Resample(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Watermark draws text in the bottom-right corner of a copy of img.
func Watermark(img image.Image, text string) *image.RGBA {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(basicfont.Face7x13)
	const margin = 8
	x := float64(dc.Width() - margin)
	y := float64(dc.Height() - margin)
	dc.SetColor(color.NRGBA{0, 0, 0, 128})
	dc.DrawStringAnchored(text, x+1, y+1, 1, 0)
	dc.SetColor(color.NRGBA{255, 255, 255, 200})
	dc.DrawStringAnchored(text, x, y, 1, 0)

	out, ok := dc.Image().(*image.RGBA)
	if !ok {
		out = image.NewRGBA(dc.Image().Bounds())
		draw.Draw(out, out.Bounds(), dc.Image(), image.Point{}, draw.Src)
	}
	return out
}

// Encode encodes img in the given format. Quality outside (0,1] uses
// DefaultQuality.
func Encode(img image.Image, format string, quality float64) (Blob, error) {
	format, err := normalizeFormat(format)
	if err != nil {
		return Blob{}, err
	}
	if !(quality > 0 && quality <= 1) {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(quality*100 + 0.5)})
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality * 100)})
	}
	if err != nil {
		return Blob{}, fmt.Errorf("encoding %s: %w", format, err)
	}
	return Blob{Data: buf.Bytes(), MIME: "image/" + format, Ext: extension(format)}, nil
}

func normalizeFormat(f string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "", "png":
		return "png", nil
	case "jpeg", "jpg":
		return "jpeg", nil
	case "webp":
		return "webp", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

func extension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
