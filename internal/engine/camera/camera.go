// Package camera provides the orbit camera used by the viewer and the
// headless preview.
package camera

import (
	gomath "math"

	"github.com/Faultbox/garment-studio/pkg/math"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	// Center point to orbit around
	Center math.Vec3

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Projection
	FovY float32 // radians
	Near float32
	Far  float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbitCamera creates a camera framing a garment at the origin. The
// polar angle may dip 0.3 rad below the horizon and distance stays within
// [0.4, 1.6].
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        1.0,
		MinDistance:     0.4,
		MaxDistance:     1.6,
		MinPitch:        -0.3,
		MaxPitch:        gomath.Pi/2 - 0.01,
		FovY:            50 * gomath.Pi / 180,
		Near:            0.01,
		Far:             100,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	x := c.Distance * float32(gomath.Cos(float64(c.RotationX))*gomath.Sin(float64(c.RotationY)))
	y := c.Distance * float32(gomath.Sin(float64(c.RotationX)))
	z := c.Distance * float32(gomath.Cos(float64(c.RotationX))*gomath.Cos(float64(c.RotationY)))
	return c.Center.Add(math.Vec3{X: x, Y: y, Z: z})
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, math.Vec3{X: 0, Y: 1, Z: 0})
}

// ProjectionMatrix returns the perspective projection for the given aspect.
func (c *OrbitCamera) ProjectionMatrix(aspect float32) math.Mat4 {
	return math.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity
	c.clamp()
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.clamp()
}

func (c *OrbitCamera) clamp() {
	c.RotationX = clamp(c.RotationX, c.MinPitch, c.MaxPitch)
	c.Distance = clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FitToBounds centers the camera on b and backs off far enough to see the
// largest dimension, within the distance limits.
func (c *OrbitCamera) FitToBounds(b math.Box) {
	if b.Empty {
		return
	}
	c.Center = b.Center()
	size := b.Size()
	maxSize := size.X
	if size.Y > maxSize {
		maxSize = size.Y
	}
	if size.Z > maxSize {
		maxSize = size.Z
	}
	half := float64(c.FovY) / 2
	c.Distance = float32(float64(maxSize)/2/gomath.Tan(half)) + size.Z/2
	c.RotationX = 0
	c.RotationY = 0
	c.clamp()
}
