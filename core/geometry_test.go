package core

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestVec3CrossIsRightHanded(t *testing.T) {
	if got := UnitX.Cross(UnitY); !got.ApproxEqual(UnitZ, eps) {
		t.Fatalf("X × Y = %+v, want %+v", got, UnitZ)
	}
	if got := UnitY.Cross(UnitZ); !got.ApproxEqual(UnitX, eps) {
		t.Fatalf("Y × Z = %+v, want %+v", got, UnitX)
	}
}

func TestVec3NormalizeZero(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("zero vector normalized to %+v", got)
	}
	if got := (Vec3{X: 3, Z: 4}).Normalize().Norm(); !approx(got, 1, eps) {
		t.Fatalf("norm after Normalize = %v", got)
	}
}

func TestAngleAxisRotatesAboutUp(t *testing.T) {
	// +90° about +Y takes +X to -Z.
	got := AngleAxis(90, Up).Rotate(UnitX)
	want := Vec3{Z: -1}
	if !got.ApproxEqual(want, 1e-12) {
		t.Fatalf("rotate = %+v, want %+v", got, want)
	}
}

func TestQuatMulComposes(t *testing.T) {
	q := AngleAxis(45, Up).Mul(AngleAxis(45, Up))
	got := q.Rotate(UnitX)
	want := AngleAxis(90, Up).Rotate(UnitX)
	if !got.ApproxEqual(want, 1e-12) {
		t.Fatalf("45°·45° = %+v, want %+v", got, want)
	}
}

func TestFromToRotation(t *testing.T) {
	cases := []struct {
		name     string
		from, to Vec3
	}{
		{"same", UnitX, UnitX},
		{"quarter", UnitX, UnitZ},
		{"opposite", UnitX, Vec3{X: -1}},
		{"oblique", UnitX, Vec3{X: 1, Y: 1, Z: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromToRotation(tc.from, tc.to).Rotate(tc.from)
			if !got.ApproxEqual(tc.to.Normalize(), 1e-9) {
				t.Fatalf("rotated = %+v, want %+v", got, tc.to.Normalize())
			}
		})
	}
}

func TestFromToRotationOppositeStaysUpright(t *testing.T) {
	for _, from := range []Vec3{UnitX, UnitZ, {X: 1, Z: 1}} {
		q := FromToRotation(from, from.Scale(-1))
		if up := q.Rotate(Up); !up.ApproxEqual(Up, 1e-9) {
			t.Fatalf("reversing %+v tilted up to %+v", from, up)
		}
	}
	q := FromToRotation(Up, Up.Scale(-1))
	if got := q.Rotate(Up); !got.ApproxEqual(Up.Scale(-1), 1e-9) {
		t.Fatalf("reversing vertical = %+v", got)
	}
}

func TestLookRotationMapsForward(t *testing.T) {
	for _, fwd := range []Vec3{UnitX, UnitZ, {X: -1}, {X: 1, Z: -1}, {Z: -1}} {
		q := LookRotation(fwd, Up)
		got := q.Rotate(UnitZ)
		if !got.ApproxEqual(fwd.Normalize(), 1e-9) {
			t.Fatalf("LookRotation(%+v) maps +Z to %+v", fwd, got)
		}
		if up := q.Rotate(UnitY); up.Y < 1-1e-9 {
			t.Fatalf("LookRotation(%+v) tilted up to %+v", fwd, up)
		}
	}
}

func TestZeroFrameIsIdentity(t *testing.T) {
	var f Frame
	p := Vec3{X: 1, Y: 2, Z: 3}
	if got := f.Point(p); got != p {
		t.Fatalf("zero frame mapped %+v to %+v", p, got)
	}
	if got := f.Up(); !got.ApproxEqual(Up, eps) {
		t.Fatalf("zero frame up = %+v", got)
	}
}
