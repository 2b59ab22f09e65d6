package core

import "fmt"

// Line is a straight segment between two anchors.
type Line struct {
	segmentBase

	// anchors in the segment's local frame
	localStart Vec3
	localEnd   Vec3
}

// NewLine creates a line of the given length starting at the origin of frame
// and heading along the frame's +X axis.
func NewLine(id SegmentID, length float64, frame Frame) (*Line, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: line %q length %v", ErrInvalidLength, id, length)
	}
	l := &Line{segmentBase: newSegmentBase(id)}
	l.frame = frame
	l.localEnd = UnitX.Scale(length)
	return l, nil
}

// NewLineBetween creates a line with explicit world-space anchors.
func NewLineBetween(id SegmentID, start, end Vec3) (*Line, error) {
	if start.SqrDistanceTo(end) == 0 {
		return nil, fmt.Errorf("%w: line %q has coincident anchors", ErrInvalidLength, id)
	}
	l := &Line{segmentBase: newSegmentBase(id)}
	l.frame = Frame{Origin: start, Rotation: IdentityQuat}
	l.localEnd = end.Sub(start)
	return l, nil
}

// MustLine is NewLine for fixtures known to be valid.
func MustLine(id SegmentID, length float64, frame Frame) *Line {
	l, err := NewLine(id, length, frame)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Line) Length() float64 {
	return l.localStart.DistanceTo(l.localEnd)
}

func (l *Line) StartPoint() Vec3 { return l.frame.Point(l.localStart) }

func (l *Line) EndPoint() Vec3 { return l.frame.Point(l.localEnd) }

// Position interpolates linearly between the world anchors.
func (l *Line) Position(u float64) Vec3 {
	return l.StartPoint().Lerp(l.EndPoint(), u)
}

// Direction is the same for every u.
func (l *Line) Direction(float64) Vec3 {
	return l.EndPoint().Sub(l.StartPoint()).Normalize()
}

// SetLength moves the end anchor along the current direction.
func (l *Line) SetLength(length float64) error {
	if length <= 0 {
		return fmt.Errorf("%w: line %q length %v", ErrInvalidLength, l.id, length)
	}
	dir := l.localEnd.Sub(l.localStart).Normalize()
	if dir == (Vec3{}) {
		dir = UnitX
	}
	l.localEnd = l.localStart.Add(dir.Scale(length))
	return nil
}

// SetDirection re-aims the line in its local frame, keeping its length.
func (l *Line) SetDirection(dir Vec3) {
	d := dir.Normalize()
	if d == (Vec3{}) {
		d = UnitX
	}
	l.localEnd = l.localStart.Add(d.Scale(l.Length()))
}

func (l *Line) Polyline() []Vec3 {
	return []Vec3{l.StartPoint(), l.EndPoint()}
}

func (l *Line) attachTo(pred Segment) {
	length := l.Length()
	l.placeAfter(pred)
	l.localStart = Vec3{}
	l.localEnd = UnitX.Scale(length)
}
