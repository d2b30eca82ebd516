package material

import (
	"errors"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/texture"
)

// ErrNotGradient is returned when baking a solid spec.
var ErrNotGradient = errors.New("spec is not a gradient")

// DefaultResolution is the edge length of baked gradient textures.
const DefaultResolution = 512

// Synthesizer bakes gradients and applies specs to materials.
type Synthesizer struct {
	resolution int
	log        *zap.Logger
}

// NewSynthesizer creates a synthesizer baking square textures of the given
// edge length. Non-positive values fall back to DefaultResolution.
func NewSynthesizer(resolution int, log *zap.Logger) *Synthesizer {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{resolution: resolution, log: log}
}

// Resolution returns the baked texture edge length.
func (s *Synthesizer) Resolution() int {
	return s.resolution
}

// Axis returns the gradient start and end points on a w x h canvas. The
// direction is scaled by the canvas half-dimensions rather than projected
// onto the diagonal, so on square canvases the endpoints sit inside the
// corners and pixels beyond them take the first or last stop color.
func Axis(angle float64, w, h int) (x0, y0, x1, y1 float64) {
	// CSS angles start at 12 o'clock and turn clockwise; image y grows down.
	rad := (angle - 90) * math.Pi / 180
	dx, dy := snap(math.Cos(rad)), snap(math.Sin(rad))
	cx, cy := float64(w)/2, float64(h)/2
	return cx - dx*cx, cy - dy*cy, cx + dx*cx, cy + dy*cy
}

// snap removes floating point noise so axis-aligned angles stay exact.
func snap(v float64) float64 {
	if math.Abs(v) < 1e-9 {
		return 0
	}
	return v
}

// Bake renders a gradient spec into a new owned, repeat-wrapped texture.
// The output depends only on the spec and the resolution.
func (s *Synthesizer) Bake(spec ColorSpec) (*texture.Texture, error) {
	if spec.Kind != KindGradient {
		return nil, ErrNotGradient
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	n := s.resolution
	dc := gg.NewContext(n, n)
	grad := gg.NewLinearGradient(Axis(spec.NormalizedAngle(), n, n))
	for _, st := range spec.Stops {
		grad.AddColorStop(st.Offset, st.Color)
	}
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(n), float64(n))
	dc.Fill()

	tex := texture.New(spec.String(), texture.ToRGBA(dc.Image()), true)
	tex.WrapS, tex.WrapT = texture.WrapRepeat, texture.WrapRepeat
	return tex, nil
}

// Apply applies spec to every material. A solid color sets the base color
// and drops any previously baked map. A gradient bakes one texture per
// material, sets the base color to white so the map shows unmodulated, and
// releases the replaced map when it was baked too.
func (s *Synthesizer) Apply(spec ColorSpec, materials []*scene.Material) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	for _, m := range materials {
		if spec.Kind == KindSolid {
			m.BaseColor = spec.Color
			m.ClearOwnedMap()
			continue
		}

		tex, err := s.Bake(spec)
		if err != nil {
			return err
		}
		tex.Name = m.Name + ":" + tex.Name
		m.SetMap(tex)
		m.BaseColor = color.NRGBA{0xff, 0xff, 0xff, 0xff}
	}

	s.log.Debug("material spec applied",
		zap.Stringer("kind", spec.Kind),
		zap.Stringer("spec", spec),
		zap.Int("materials", len(materials)))
	return nil
}

// ApplyString parses and applies a spec string. Malformed gradients are
// logged and skipped so the materials keep their current look.
func (s *Synthesizer) ApplyString(spec string, materials []*scene.Material) {
	cs, err := ParseColorSpec(spec)
	if err == nil {
		err = s.Apply(cs, materials)
	}
	if err != nil {
		s.log.Warn("color spec skipped", zap.String("spec", spec), zap.Error(err))
	}
}
