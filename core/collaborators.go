package core

// Drive supplies the speed a mover or segment travels at. Speeds are in
// millimetres per second.
type Drive interface {
	CurrentSpeed() float64
	Reverse() bool
	Accelerate()
	Decelerate()
	IsStopped() bool
	IsAtTargetSpeed() bool
}

// RigidBody positions a mover's body in the world.
type RigidBody interface {
	SetPosition(p Vec3)
	SetRotation(q Quat)
	SetVelocity(v Vec3)
}

// RayQuery casts rays against the world for obstacles. Cast reports whether anything on
// layerMask lies within maxDistance of origin along direction.
type RayQuery interface {
	Cast(origin, direction Vec3, maxDistance float64, layerMask uint32) bool
}

// RayQueryFunc adapts a function to RayQuery.
type RayQueryFunc func(origin, direction Vec3, maxDistance float64, layerMask uint32) bool

// Cast implements RayQuery.
func (f RayQueryFunc) Cast(origin, direction Vec3, maxDistance float64, layerMask uint32) bool {
	return f(origin, direction, maxDistance, layerMask)
}

// LineRenderer receives polylines for visualisation. It never feeds back into
// the simulation.
type LineRenderer interface {
	DrawPolyline(id SegmentID, points []Vec3, width float64)
}

// BodyState is a RigidBody that just records what it was told. It is used by
// headless runs and tests.
type BodyState struct {
	Position Vec3
	Rotation Quat
	Velocity Vec3
}

func (b *BodyState) SetPosition(p Vec3) { b.Position = p }
func (b *BodyState) SetRotation(q Quat) { b.Rotation = q }
func (b *BodyState) SetVelocity(v Vec3) { b.Velocity = v }
