package math

import "math"

// Quat is a rotation quaternion; W is the scalar part.
// glTF nodes carry their rotation in this form.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns the no-rotation quaternion.
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// Normalize returns a unit quaternion.
func (q Quat) Normalize() Quat {
	l := float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
	if l < 0.0001 {
		return QuatIdentity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Euler converts the quaternion to XYZ-order Euler angles in radians,
// matching the order used by Transform.
func (q Quat) Euler() Vec3 {
	m := q.ToMat4()
	// XYZ order: m[8] holds the sine of the Y angle.
	sy := clamp(m[8], -1, 1)
	y := float32(math.Asin(float64(sy)))
	var x, z float32
	if math.Abs(float64(sy)) < 0.9999999 {
		x = float32(math.Atan2(float64(-m[9]), float64(m[10])))
		z = float32(math.Atan2(float64(-m[4]), float64(m[0])))
	} else {
		x = float32(math.Atan2(float64(m[6]), float64(m[5])))
	}
	return Vec3{x, y, z}
}

// ToMat4 converts the quaternion to a rotation matrix.
func (q Quat) ToMat4() Mat4 {
	q = q.Normalize()

	xx, xy, xz, xw := q.X*q.X, q.X*q.Y, q.X*q.Z, q.X*q.W
	yy, yz, yw := q.Y*q.Y, q.Y*q.Z, q.Y*q.W
	zz, zw := q.Z*q.Z, q.Z*q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(hi, v))
}
