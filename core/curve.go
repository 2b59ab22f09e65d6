package core

import (
	"fmt"
	"math"
)

// Curve is a circular arc in the horizontal plane of its frame. The arc
// leaves its start anchor heading along the frame's +X axis (before the start
// angle is applied).
type Curve struct {
	segmentBase

	radius     float64
	startAngle float64
	sweep      float64
	clockwise  bool
}

// NewCurve creates an arc with the given radius and sweep in degrees. Sweeps
// over 360 degrees are allowed and wind around more than once.
func NewCurve(id SegmentID, radius, startAngle, sweep float64, clockwise bool, frame Frame) (*Curve, error) {
	if err := validateCurve(id, radius, sweep); err != nil {
		return nil, err
	}
	c := &Curve{
		segmentBase: newSegmentBase(id),
		radius:      radius,
		startAngle:  startAngle,
		sweep:       sweep,
		clockwise:   clockwise,
	}
	c.frame = frame
	return c, nil
}

// MustCurve is NewCurve for fixtures known to be valid.
func MustCurve(id SegmentID, radius, startAngle, sweep float64, clockwise bool, frame Frame) *Curve {
	c, err := NewCurve(id, radius, startAngle, sweep, clockwise, frame)
	if err != nil {
		panic(err)
	}
	return c
}

func validateCurve(id SegmentID, radius, sweep float64) error {
	if !(radius > 0) {
		return fmt.Errorf("%w: curve %q radius %v", ErrInvalidRadius, id, radius)
	}
	if !(sweep > 0) {
		return fmt.Errorf("%w: curve %q sweep %v", ErrInvalidSweep, id, sweep)
	}
	return nil
}

func (c *Curve) Radius() float64     { return c.radius }
func (c *Curve) StartAngle() float64 { return c.startAngle }
func (c *Curve) Sweep() float64      { return c.sweep }
func (c *Curve) Clockwise() bool     { return c.clockwise }

// SetRadius changes the radius, keeping the start anchor in place.
func (c *Curve) SetRadius(r float64) error {
	if err := validateCurve(c.id, r, c.sweep); err != nil {
		return err
	}
	c.radius = r
	return nil
}

// SetSweep changes the swept angle in degrees.
func (c *Curve) SetSweep(deg float64) error {
	if err := validateCurve(c.id, c.radius, deg); err != nil {
		return err
	}
	c.sweep = deg
	return nil
}

func (c *Curve) SetClockwise(cw bool) { c.clockwise = cw }

func (c *Curve) SetStartAngle(deg float64) { c.startAngle = deg }

// Rotate turns the arc a quarter turn about its start anchor.
func (c *Curve) Rotate() { c.startAngle += 90 }

func (c *Curve) Length() float64 {
	return 2 * math.Pi * c.radius * c.sweep / 360
}

// localPoint returns the arc point deg degrees along the arc, in the local
// frame. The start anchor is the local origin.
func (c *Curve) localPoint(deg float64) Vec3 {
	rad := deg * math.Pi / 180
	x := c.radius * math.Sin(rad)
	z := c.radius*math.Cos(rad) - c.radius
	if !c.clockwise {
		z = -z
	}
	return AngleAxis(-c.startAngle, Up).Rotate(Vec3{X: x, Z: z})
}

// Center is the world-space center of the circle the arc lies on.
func (c *Curve) Center() Vec3 {
	mid := c.localPoint(0).Lerp(c.localPoint(180), 0.5)
	return c.frame.Point(mid)
}

func (c *Curve) StartPoint() Vec3 { return c.frame.Point(c.localPoint(0)) }

func (c *Curve) EndPoint() Vec3 { return c.frame.Point(c.localPoint(c.sweep)) }

func (c *Curve) Position(u float64) Vec3 {
	return c.frame.Point(c.localPoint(c.sweep * u))
}

// Direction is the unit tangent at u, taken as the cross product of the
// vertical axis with the radius vector.
func (c *Curve) Direction(u float64) Vec3 {
	r := c.Position(u).Sub(c.Center())
	up := c.frame.Up()
	if !c.clockwise {
		up = up.Scale(-1)
	}
	return up.Cross(r).Normalize()
}

// Polyline samples the arc at roughly one point per degree.
func (c *Curve) Polyline() []Vec3 {
	n := int(c.sweep)
	if n < 1 {
		n = 1
	}
	pts := make([]Vec3, 0, n+1)
	for i := 0; i <= n; i++ {
		pts = append(pts, c.Position(float64(i)/float64(n)))
	}
	return pts
}

func (c *Curve) attachTo(pred Segment) {
	c.placeAfter(pred)
	c.startAngle = 0
	if pc, ok := pred.(*Curve); ok {
		c.clockwise = pc.clockwise
	}
}
