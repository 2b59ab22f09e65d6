package core

import "math"

// Vec3 is a point or vector in world space, in metres. Y is the vertical axis.
type Vec3 struct {
	X, Y, Z float64
}

var (
	UnitX = Vec3{X: 1}
	UnitY = Vec3{Y: 1}
	UnitZ = Vec3{Z: 1}

	// Up is the vertical axis used by curves, side rays and alignment.
	Up = UnitY
)

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v multiplied by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the right-handed cross product v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// SqrDistanceTo returns the squared distance between two points.
func (v Vec3) SqrDistanceTo(other Vec3) float64 {
	d := v.Sub(other)
	return d.Dot(d)
}

// Normalize returns the unit vector in the direction of v. The zero vector
// normalizes to itself.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// Lerp interpolates between v and other. t is not clamped.
func (v Vec3) Lerp(other Vec3, t float64) Vec3 {
	return v.Add(other.Sub(v).Scale(t))
}

// ApproxEqual reports whether v and other are within tol of each other.
func (v Vec3) ApproxEqual(other Vec3, tol float64) bool {
	return v.SqrDistanceTo(other) <= tol*tol
}

// Quat is a unit quaternion describing a rotation.
type Quat struct {
	W, X, Y, Z float64
}

// IdentityQuat is the rotation that leaves vectors unchanged.
var IdentityQuat = Quat{W: 1}

// AngleAxis returns a rotation of deg degrees about axis.
func AngleAxis(deg float64, axis Vec3) Quat {
	a := axis.Normalize()
	half := deg * math.Pi / 360
	s := math.Sin(half)
	return Quat{W: math.Cos(half), X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

// Mul composes two rotations: the result applies r first, then q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Normalize rescales q to unit length. The zero quaternion becomes identity.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return IdentityQuat
	}
	return Quat{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// FromToRotation returns the shortest rotation taking direction from onto
// direction to.
func FromToRotation(from, to Vec3) Quat {
	f := from.Normalize()
	t := to.Normalize()
	d := f.Dot(t)
	if d >= 1-1e-12 {
		return IdentityQuat
	}
	if d <= -1+1e-12 {
		// turn about the vertical so the frame stays upright; only a
		// vertical from needs a horizontal axis
		if f.Cross(Up).Norm() >= 1e-9 {
			return AngleAxis(180, Up)
		}
		return AngleAxis(180, f.Cross(UnitX))
	}
	c := f.Cross(t)
	return Quat{W: 1 + d, X: c.X, Y: c.Y, Z: c.Z}.Normalize()
}

// LookRotation returns the rotation that maps +Z onto forward and keeps +Y
// as close to up as possible.
func LookRotation(forward, up Vec3) Quat {
	f := forward.Normalize()
	if f == (Vec3{}) {
		return IdentityQuat
	}
	r := up.Cross(f)
	if r.Norm() < 1e-9 {
		return FromToRotation(UnitZ, f)
	}
	r = r.Normalize()
	u := f.Cross(r)

	m00, m01, m02 := r.X, u.X, f.X
	m10, m11, m12 := r.Y, u.Y, f.Y
	m20, m21, m22 := r.Z, u.Z, f.Z

	var q Quat
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = Quat{W: 0.25 / s, X: (m21 - m12) * s, Y: (m02 - m20) * s, Z: (m10 - m01) * s}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = Quat{W: (m21 - m12) / s, X: 0.25 * s, Y: (m01 + m10) / s, Z: (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = Quat{W: (m02 - m20) / s, X: (m01 + m10) / s, Y: 0.25 * s, Z: (m12 + m21) / s}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = Quat{W: (m10 - m01) / s, X: (m02 + m20) / s, Y: (m12 + m21) / s, Z: 0.25 * s}
	}
	return q.Normalize()
}

// Frame places a segment's local geometry in the world.
type Frame struct {
	Origin   Vec3
	Rotation Quat
}

// IdentityFrame is the frame at the world origin with no rotation.
var IdentityFrame = Frame{Rotation: IdentityQuat}

// Point maps a local point to world space.
func (f Frame) Point(local Vec3) Vec3 {
	return f.Origin.Add(f.rotation().Rotate(local))
}

// Vector maps a local direction to world space.
func (f Frame) Vector(local Vec3) Vec3 {
	return f.rotation().Rotate(local)
}

// Up returns the frame's vertical axis in world space.
func (f Frame) Up() Vec3 {
	return f.Vector(Up)
}

// a zero Frame literal behaves as the identity
func (f Frame) rotation() Quat {
	if f.Rotation == (Quat{}) {
		return IdentityQuat
	}
	return f.Rotation
}
