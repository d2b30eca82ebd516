package material

import (
	"bytes"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/texture"
)

var (
	white = color.NRGBA{255, 255, 255, 255}
	black = color.NRGBA{0, 0, 0, 255}
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#fff", white},
		{"#FF0000", color.NRGBA{255, 0, 0, 255}},
		{"#00ff0080", color.NRGBA{0, 255, 0, 128}},
		{"rgb(1, 2, 3)", color.NRGBA{1, 2, 3, 255}},
		{"rgba(1,2,3,0)", color.NRGBA{1, 2, 3, 0}},
		{"navy", color.NRGBA{0, 0, 128, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "#12", "rgb(1,2)", "rgb(300,0,0)", "notacolor"} {
		_, err := ParseColor(bad)
		assert.ErrorIs(t, err, ErrInvalidColor, bad)
	}
}

func TestParseColorSpec(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ColorSpec
	}{
		{
			name: "solid",
			in:   "#336699",
			want: Solid(color.NRGBA{0x33, 0x66, 0x99, 0xff}),
		},
		{
			name: "angle and offsets",
			in:   "linear-gradient(135deg, #ffffff 0%, #000000 100%)",
			want: Gradient(135, Stop{0, white}, Stop{1, black}),
		},
		{
			name: "wrapped angle",
			in:   "linear-gradient(-90deg, white, black)",
			want: Gradient(270, Stop{0, white}, Stop{1, black}),
		},
		{
			name: "side keyword and distributed stops",
			in:   "linear-gradient(to bottom right, white, rgb(128, 128, 128), black)",
			want: Gradient(135, Stop{0, white}, Stop{0.5, color.NRGBA{128, 128, 128, 255}}, Stop{1, black}),
		},
		{
			name: "default direction",
			in:   "linear-gradient(white 20%, black)",
			want: Gradient(180, Stop{0.2, white}, Stop{1, black}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColorSpec(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.Color, got.Color)
			assert.InDelta(t, tt.want.Angle, got.Angle, 1e-9)
			require.Len(t, got.Stops, len(tt.want.Stops))
			for i := range got.Stops {
				assert.InDelta(t, tt.want.Stops[i].Offset, got.Stops[i].Offset, 1e-9)
				assert.Equal(t, tt.want.Stops[i].Color, got.Stops[i].Color)
			}
		})
	}
}

func TestParseColorSpecErrors(t *testing.T) {
	for _, in := range []string{
		"linear-gradient(45deg, white)",
		"linear-gradient(45deg, white 80%, black 20%)",
		"linear-gradient(sideways, white, black)",
		"linear-gradient(to nowhere, white, black)",
		"radial-gradient(white, black)",
		"linear-gradient(45deg, white 0%, black 100%",
	} {
		_, err := ParseColorSpec(in)
		assert.ErrorIs(t, err, ErrGradientParse, in)
	}
}

func TestSpecStringRoundTrip(t *testing.T) {
	spec := Gradient(135, Stop{0, white}, Stop{0.25, color.NRGBA{255, 0, 0, 255}}, Stop{1, black})
	parsed, err := ParseColorSpec(spec.String())
	require.NoError(t, err)
	assert.Equal(t, spec, parsed)
}

func TestAxis(t *testing.T) {
	tests := []struct {
		angle          float64
		x0, y0, x1, y1 float64
	}{
		{90, 0, 50, 100, 50},  // left to right
		{180, 50, 0, 50, 100}, // top to bottom
		{0, 50, 100, 50, 0},   // bottom to top
		{270, 100, 50, 0, 50}, // right to left
		// top-left to bottom-right
		{135, 50 * (1 - math.Sqrt2/2), 50 * (1 - math.Sqrt2/2), 50 * (1 + math.Sqrt2/2), 50 * (1 + math.Sqrt2/2)},
		{495, 50 * (1 - math.Sqrt2/2), 50 * (1 - math.Sqrt2/2), 50 * (1 + math.Sqrt2/2), 50 * (1 + math.Sqrt2/2)},
	}
	for _, tt := range tests {
		x0, y0, x1, y1 := Axis(tt.angle, 100, 100)
		assert.InDelta(t, tt.x0, x0, 1e-9, "angle %v x0", tt.angle)
		assert.InDelta(t, tt.y0, y0, 1e-9, "angle %v y0", tt.angle)
		assert.InDelta(t, tt.x1, x1, 1e-9, "angle %v x1", tt.angle)
		assert.InDelta(t, tt.y1, y1, 1e-9, "angle %v y1", tt.angle)
	}
}

func near(t *testing.T, want, got color.RGBA, tol uint8) {
	t.Helper()
	diff := func(a, b uint8) uint8 {
		if a > b {
			return a - b
		}
		return b - a
	}
	if diff(want.R, got.R) > tol || diff(want.G, got.G) > tol || diff(want.B, got.B) > tol {
		t.Errorf("color %v not within %d of %v", got, tol, want)
	}
}

func TestBakeCorners(t *testing.T) {
	s := NewSynthesizer(512, nil)
	tex, err := s.Bake(Gradient(135, Stop{0, white}, Stop{1, black}))
	require.NoError(t, err)

	assert.True(t, tex.Owned())
	assert.Equal(t, texture.WrapRepeat, tex.WrapS)
	assert.Equal(t, texture.WrapRepeat, tex.WrapT)

	w, h := tex.Size()
	require.Equal(t, 512, w)
	require.Equal(t, 512, h)

	near(t, color.RGBA{255, 255, 255, 255}, tex.Image.RGBAAt(2, 2), 8)
	near(t, color.RGBA{0, 0, 0, 255}, tex.Image.RGBAAt(509, 509), 8)
	// the anti-diagonal sits halfway along the axis
	near(t, color.RGBA{128, 128, 128, 255}, tex.Image.RGBAAt(256, 256), 8)
}

func TestBakeDeterministic(t *testing.T) {
	s := NewSynthesizer(64, nil)
	spec := Gradient(30, Stop{0, color.NRGBA{200, 10, 10, 255}}, Stop{0.6, color.NRGBA{10, 200, 10, 255}}, Stop{1, black})

	a, err := s.Bake(spec)
	require.NoError(t, err)
	b, err := s.Bake(spec)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a.Image.Pix, b.Image.Pix))
}

func TestBakeRejectsSolid(t *testing.T) {
	_, err := NewSynthesizer(8, nil).Bake(Solid(white))
	assert.ErrorIs(t, err, ErrNotGradient)
}

func TestApplySolidRoundTrip(t *testing.T) {
	s := NewSynthesizer(16, nil)
	m := &scene.Material{Name: "body"}
	red := color.NRGBA{200, 30, 30, 255}

	require.NoError(t, s.Apply(Solid(red), []*scene.Material{m}))
	assert.Equal(t, red, m.BaseColor)
	assert.Nil(t, m.Map)
}

func TestApplyGradientReleasesPrevious(t *testing.T) {
	s := NewSynthesizer(16, nil)
	m := &scene.Material{Name: "body"}
	spec := Gradient(90, Stop{0, white}, Stop{1, black})

	require.NoError(t, s.Apply(spec, []*scene.Material{m}))
	first := m.Map
	require.NotNil(t, first)
	assert.Equal(t, white, m.BaseColor)

	require.NoError(t, s.Apply(spec, []*scene.Material{m}))
	assert.True(t, first.Released(), "re-applying must release the previous bake")
	assert.NotSame(t, first, m.Map)

	second := m.Map
	require.NoError(t, s.Apply(Solid(black), []*scene.Material{m}))
	assert.True(t, second.Released())
	assert.Nil(t, m.Map)
}

func TestApplySolidKeepsAuthoredMap(t *testing.T) {
	authored := texture.New("print", nil, false)
	m := &scene.Material{Map: authored}
	require.NoError(t, NewSynthesizer(8, nil).Apply(Solid(white), []*scene.Material{m}))
	assert.Same(t, authored, m.Map)
}

func TestApplyStringSkipsMalformed(t *testing.T) {
	s := NewSynthesizer(8, nil)
	base := color.NRGBA{1, 2, 3, 255}
	m := &scene.Material{BaseColor: base}

	s.ApplyString("linear-gradient(45deg, white)", []*scene.Material{m})
	assert.Equal(t, base, m.BaseColor)
	assert.Nil(t, m.Map)

	s.ApplyString("#ffffff", []*scene.Material{m})
	assert.Equal(t, white, m.BaseColor)
}
