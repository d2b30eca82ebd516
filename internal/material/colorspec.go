// Package material turns color specifications into material state: solid
// colors set the base color, gradients are baked into a repeating texture.
package material

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Parse errors.
var (
	ErrGradientParse = errors.New("malformed gradient")
	ErrInvalidColor  = errors.New("invalid color")
)

// Kind distinguishes solid and gradient specs.
type Kind int

// Spec kinds.
const (
	KindSolid Kind = iota
	KindGradient
)

func (k Kind) String() string {
	if k == KindGradient {
		return "gradient"
	}
	return "solid"
}

// Stop is a gradient color at a normalized offset.
type Stop struct {
	Offset float64
	Color  color.NRGBA
}

// ColorSpec is either a solid color or a linear gradient.
//
// Angle is in degrees and follows CSS linear-gradient: 0 runs bottom to top
// and angles turn clockwise, so 90 runs left to right and 135 runs from the
// top-left corner to the bottom-right one. A horizontal zero with a
// (cos, sin) direction would put the first stop of a 135 degree gradient in
// the top-right or bottom-right corner instead.
type ColorSpec struct {
	Kind  Kind
	Color color.NRGBA
	Angle float64
	Stops []Stop
}

// Solid returns a solid color spec.
func Solid(c color.NRGBA) ColorSpec {
	return ColorSpec{Kind: KindSolid, Color: c}
}

// Gradient returns a gradient spec.
func Gradient(angle float64, stops ...Stop) ColorSpec {
	return ColorSpec{Kind: KindGradient, Angle: angle, Stops: stops}
}

// Validate checks that a gradient has at least two stops with
// non-decreasing offsets in [0,1].
func (s ColorSpec) Validate() error {
	if s.Kind != KindGradient {
		return nil
	}
	if len(s.Stops) < 2 {
		return fmt.Errorf("%w: need at least 2 stops, got %d", ErrGradientParse, len(s.Stops))
	}
	prev := 0.0
	for i, st := range s.Stops {
		if st.Offset < 0 || st.Offset > 1 || math.IsNaN(st.Offset) {
			return fmt.Errorf("%w: stop %d offset %v outside [0,1]", ErrGradientParse, i, st.Offset)
		}
		if st.Offset < prev {
			return fmt.Errorf("%w: stop %d offset %v decreases", ErrGradientParse, i, st.Offset)
		}
		prev = st.Offset
	}
	return nil
}

// NormalizedAngle wraps the angle into [0,360).
func (s ColorSpec) NormalizedAngle() float64 {
	a := math.Mod(s.Angle, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// String formats the spec as a hex color or a CSS linear-gradient.
func (s ColorSpec) String() string {
	if s.Kind == KindSolid {
		return FormatHex(s.Color)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "linear-gradient(%sdeg", strconv.FormatFloat(s.NormalizedAngle(), 'f', -1, 64))
	for _, st := range s.Stops {
		fmt.Fprintf(&b, ", %s %s%%", FormatHex(st.Color), strconv.FormatFloat(st.Offset*100, 'f', -1, 64))
	}
	b.WriteString(")")
	return b.String()
}

// ParseColor parses "#rgb", "#rrggbb", "#rrggbbaa", "rgb(...)", "rgba(...)"
// and CSS color names.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "#") && len(s) == 9:
		c, err := colorful.Hex(s[:7])
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		out := toNRGBA(c)
		out.A = uint8(a)
		return out, nil
	case strings.HasPrefix(s, "#"):
		c, err := colorful.Hex(s)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		return toNRGBA(c), nil
	case strings.HasPrefix(s, "rgb"):
		return parseRGBFunc(s)
	}
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

// FormatHex formats c as "#rrggbb".
func FormatHex(c color.NRGBA) string {
	cf, _ := colorful.MakeColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
	return cf.Hex()
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

func parseRGBFunc(s string) (color.NRGBA, error) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	parts := strings.Split(s[open+1:end], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	var ch [4]uint8
	ch[3] = 0xff
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == 3 {
			a, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
			}
			ch[3] = uint8(math.Round(max(0, min(1, a)) * 255))
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		ch[i] = uint8(v)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}
