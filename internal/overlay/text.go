package overlay

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/text/unicode/norm"

	"github.com/Faultbox/garment-studio/internal/texture"
)

// textRasterScale is the number of raster pixels per point.
const textRasterScale = 4

const lineSpacing = 1.2

// RenderText rasterizes a label without installing it. The world-space
// line height equals SizePt * PointSize.
func (p *Placer) RenderText(t TextLabel) (*Billboard, error) {
	text := norm.NFC.String(strings.TrimSpace(t.Text))
	if text == "" {
		return nil, ErrEmptyText
	}
	size := t.SizePt
	if size <= 0 {
		size = 24
	}
	if size > p.limits.MaxTextPt {
		return nil, fmt.Errorf("%w: %gpt label, limit %gpt", ErrTooLarge, size, p.limits.MaxTextPt)
	}

	face, found := p.fonts.Face(t.Font, size*textRasterScale)
	if !found && t.Font != "" {
		p.log.Debug("font unavailable, using default", zap.String("font", t.Font))
	}
	lines := strings.Split(text, "\n")

	pxPerLine := float64(face.Metrics().Height.Ceil())
	w, h := measure(face, lines)
	pad := math.Ceil(pxPerLine * 0.1)

	cw, ch := int(math.Ceil(w+2*pad)), int(math.Ceil(h+2*pad))
	if err := p.limits.checkRaster(cw, ch); err != nil {
		return nil, err
	}
	dc := gg.NewContext(cw, ch)
	dc.SetFontFace(face)
	dc.SetColor(labelColor(t))
	for i, line := range lines {
		y := pad + (float64(i)*lineSpacing+0.5)*pxPerLine
		dc.DrawStringAnchored(line, float64(dc.Width())/2, y, 0.5, 0.5)
	}

	img := texture.ToRGBA(dc.Image())
	k := size * PointSize / pxPerLine
	return &Billboard{
		Kind:    KindText,
		Texture: texture.New("overlay:text", img, true),
		Width:   float32(float64(dc.Width()) * k),
		Height:  float32(float64(dc.Height()) * k),
		Offset:  t.Offset,
	}, nil
}

func measure(face font.Face, lines []string) (w, h float64) {
	for _, line := range lines {
		adv := font.MeasureString(face, line)
		w = max(w, float64(adv)/64)
	}
	lh := float64(face.Metrics().Height.Ceil())
	h = lh + float64(len(lines)-1)*lh*lineSpacing
	return max(w, 1), h
}

// labelColor treats a fully transparent color as unset.
func labelColor(t TextLabel) color.NRGBA {
	if t.Color.A == 0 {
		return color.NRGBA{A: 0xff}
	}
	return t.Color
}
