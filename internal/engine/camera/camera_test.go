package camera

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/garment-studio/pkg/math"
)

func TestPositionFront(t *testing.T) {
	c := NewOrbitCamera()
	p := c.Position()
	if gomath.Abs(float64(p.X)) > 1e-6 || gomath.Abs(float64(p.Y)) > 1e-6 || gomath.Abs(float64(p.Z-1)) > 1e-6 {
		t.Errorf("default camera should sit at (0,0,1), got %+v", p)
	}
}

func TestZoomLimits(t *testing.T) {
	tests := []struct {
		name  string
		delta float32
		steps int
		want  float32
	}{
		{"zoom in", 5, 20, 0.4},
		{"zoom out", -5, 20, 1.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOrbitCamera()
			for i := 0; i < tt.steps; i++ {
				c.HandleZoom(tt.delta)
			}
			if c.Distance != tt.want {
				t.Errorf("distance = %v, want %v", c.Distance, tt.want)
			}
		})
	}
}

func TestPitchLimits(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleDrag(0, -10000)
	if c.RotationX != -0.3 {
		t.Errorf("pitch below horizon should stop at -0.3, got %v", c.RotationX)
	}
	c.HandleDrag(0, 10000)
	if c.RotationX != c.MaxPitch {
		t.Errorf("pitch should stop at %v, got %v", c.MaxPitch, c.RotationX)
	}
}

func TestFitToBounds(t *testing.T) {
	c := NewOrbitCamera()
	b := math.EmptyBox().
		Extend(math.Vec3{X: -0.3, Y: 0.5, Z: -0.1}).
		Extend(math.Vec3{X: 0.3, Y: 1.1, Z: 0.1})
	c.FitToBounds(b)

	want := math.Vec3{X: 0, Y: 0.8, Z: 0}
	if d := c.Center.Sub(want).Length(); d > 1e-6 {
		t.Errorf("center = %+v, want %+v", c.Center, want)
	}
	if c.Distance < c.MinDistance || c.Distance > c.MaxDistance {
		t.Errorf("distance %v outside limits", c.Distance)
	}

	before := *c
	c.FitToBounds(math.EmptyBox())
	if *c != before {
		t.Error("empty bounds should not move the camera")
	}
}
