package math

import "testing"

func TestVec2Pixel(t *testing.T) {
	tests := []struct {
		uv   Vec2
		x, y float64
		reso int
	}{
		{Vec2{0, 0}, 0, 512, 512},
		{Vec2{1, 0}, 512, 512, 512},
		{Vec2{0, 1}, 0, 0, 512},
		{Vec2{0.5, 0.25}, 512, 768, 1024},
	}

	for _, tt := range tests {
		x, y := tt.uv.Pixel(tt.reso)
		if x != tt.x || y != tt.y {
			t.Errorf("%v.Pixel(%d) = (%v, %v), want (%v, %v)", tt.uv, tt.reso, x, y, tt.x, tt.y)
		}
	}
}

func TestVec3Cross(t *testing.T) {
	got := Vec3{1, 0, 0}.Cross(Vec3{0, 1, 0})
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestBoxExtend(t *testing.T) {
	b := EmptyBox().Extend(Vec3{1, 2, 3}).Extend(Vec3{-1, 0, 5})
	if b.Min != (Vec3{-1, 0, 3}) || b.Max != (Vec3{1, 2, 5}) {
		t.Errorf("box = %+v", b)
	}
	if c := b.Center(); c != (Vec3{0, 1, 4}) {
		t.Errorf("Center() = %v, want (0, 1, 4)", c)
	}
	if u := EmptyBox().Union(b); u != b {
		t.Errorf("Union with empty = %+v, want %+v", u, b)
	}
}
