// Package math provides the small vector and matrix set used by the
// scene graph, the overlay billboards and the renderer.
package math

import "math"

// Vec2 is a 2D vector. It doubles as a UV coordinate and a 2D placement offset.
type Vec2 struct {
	X, Y float32
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{v.X + other.X, v.Y + other.Y}
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

// Scale returns v * s.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Length returns the magnitude.
func (v Vec2) Length() float32 {
	return float32(math.Hypot(float64(v.X), float64(v.Y)))
}

// Pixel maps a UV coordinate onto a square image of the given size.
// V is flipped because image rows grow downwards while V grows upwards.
func (v Vec2) Pixel(resolution int) (float64, float64) {
	r := float64(resolution)
	return float64(v.X) * r, (1 - float64(v.Y)) * r
}
