package math

import "testing"

const tolerance = 1e-3

func TestQuadCornersSymmetry(t *testing.T) {
	tests := []struct {
		center, size Vec2
		rotation     float32
	}{
		{Vec2{480, 270}, Vec2{720, 405}, 0},
		{Vec2{0, 0}, Vec2{1, 1}, 0},
		{Vec2{100, 50}, Vec2{10, 300}, 0},
		{Vec2{480, 270}, Vec2{720, 405}, DegToRad(30)},
		{Vec2{-20, 35}, Vec2{64, 64}, DegToRad(-90)},
	}

	for _, tt := range tests {
		c := QuadCorners(tt.center, tt.size, tt.rotation)
		twice := tt.center.MulScalar(2)
		for i := 0; i < 4; i++ {
			if sum := c[i].Add(c[3-i]); !sum.Compare(twice, tolerance) {
				t.Errorf("center %v size %v rot %v: corner[%d]+corner[%d] = %v, want %v",
					tt.center, tt.size, tt.rotation, i, 3-i, sum, twice)
			}
		}
	}
}

func TestQuadCornersAxisAligned(t *testing.T) {
	c := QuadCorners(Vec2{480, 270}, Vec2{720, 405}, 0)
	want := [4]Vec2{
		{120, 67.5},
		{840, 67.5},
		{120, 472.5},
		{840, 472.5},
	}
	for i := range want {
		if !c[i].Compare(want[i], tolerance) {
			t.Errorf("corner[%d] = %v, want %v", i, c[i], want[i])
		}
	}
}

func TestQuadTexcoords(t *testing.T) {
	tc := QuadTexcoords(Vec2{0, 0}, Vec2{1, 1})
	want := [4]Vec2{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	if tc != want {
		t.Errorf("texcoords = %v, want %v", tc, want)
	}

	tc = QuadTexcoords(Vec2{0.25, 0.5}, Vec2{0.5, 0.25})
	want = [4]Vec2{{0.25, 0.5}, {0.75, 0.5}, {0.25, 0.75}, {0.75, 0.75}}
	if tc != want {
		t.Errorf("texcoords = %v, want %v", tc, want)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(uint32(20), 1, 16); got != 16 {
		t.Errorf("Clamp = %d, want 16", got)
	}
	if got := Clamp(float32(-1), 0, 1); got != 0 {
		t.Errorf("Clamp = %v, want 0", got)
	}
	if got := Clamp(5, 1, 16); got != 5 {
		t.Errorf("Clamp = %d, want 5", got)
	}
}
