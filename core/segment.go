package core

import (
	"golang.org/x/exp/slices"
)

// SegmentID identifies a segment inside a Network.
type SegmentID string

// Segment is a geometric path primitive. u is the segment-local normalized
// position; values outside [0,1] extrapolate the geometry.
type Segment interface {
	ID() SegmentID
	Length() float64
	Position(u float64) Vec3
	Direction(u float64) Vec3

	Frame() Frame
	StartPoint() Vec3
	EndPoint() Vec3
	Thickness() float64
	SetThickness(t float64)

	Predecessors() []SegmentID
	Successors() []SegmentID

	Drive() Drive
	SetDrive(d Drive)
	PathStrategy() Strategy
	SetPathStrategy(s Strategy)
	Strategies() []Strategy
	AddStrategy(s Strategy)

	OnEntered(fn MoverListener) (remove func())
	OnEnd(fn MoverListener) (remove func())
	OnExit(fn MoverListener) (remove func())

	// Polyline samples the segment for rendering.
	Polyline() []Vec3

	base() *segmentBase
	attachTo(pred Segment)
}

const defaultThickness = 0.025

// segmentBase carries the state shared by every segment variant.
type segmentBase struct {
	id        SegmentID
	frame     Frame
	thickness float64

	predecessors []SegmentID
	successors   []SegmentID

	drive      Drive
	strategy   Strategy
	strategies []Strategy

	entered moverListeners
	end     moverListeners
	exit    moverListeners
}

func newSegmentBase(id SegmentID) segmentBase {
	return segmentBase{id: id, frame: IdentityFrame, thickness: defaultThickness}
}

func (b *segmentBase) ID() SegmentID { return b.id }

func (b *segmentBase) Frame() Frame { return b.frame }

func (b *segmentBase) Thickness() float64 { return b.thickness }

func (b *segmentBase) SetThickness(t float64) { b.thickness = t }

// Predecessors returns a copy of the segments snapped to this segment's start.
func (b *segmentBase) Predecessors() []SegmentID {
	return slices.Clone(b.predecessors)
}

// Successors returns a copy of the segments snapped to this segment's end.
func (b *segmentBase) Successors() []SegmentID {
	return slices.Clone(b.successors)
}

func (b *segmentBase) Drive() Drive { return b.drive }

func (b *segmentBase) SetDrive(d Drive) { b.drive = d }

func (b *segmentBase) PathStrategy() Strategy { return b.strategy }

func (b *segmentBase) SetPathStrategy(s Strategy) { b.strategy = s }

func (b *segmentBase) Strategies() []Strategy { return slices.Clone(b.strategies) }

func (b *segmentBase) AddStrategy(s Strategy) {
	if s != nil {
		b.strategies = append(b.strategies, s)
	}
}

func (b *segmentBase) OnEntered(fn MoverListener) func() { return b.entered.add(fn) }

func (b *segmentBase) OnEnd(fn MoverListener) func() { return b.end.add(fn) }

func (b *segmentBase) OnExit(fn MoverListener) func() { return b.exit.add(fn) }

func (b *segmentBase) base() *segmentBase { return b }

func (b *segmentBase) addPredecessor(id SegmentID) {
	if !slices.Contains(b.predecessors, id) {
		b.predecessors = append(b.predecessors, id)
	}
}

func (b *segmentBase) addSuccessor(id SegmentID) {
	if !slices.Contains(b.successors, id) {
		b.successors = append(b.successors, id)
	}
}

func (b *segmentBase) removePredecessor(id SegmentID) {
	b.predecessors = removeID(b.predecessors, id)
}

func (b *segmentBase) removeSuccessor(id SegmentID) {
	b.successors = removeID(b.successors, id)
}

// purge drops ids rejected by keep and duplicates, preserving order.
func (b *segmentBase) purge(keep func(SegmentID) bool) {
	b.predecessors = compactIDs(b.predecessors, keep)
	b.successors = compactIDs(b.successors, keep)
}

// placeAfter positions the frame at pred's end, oriented along pred's end
// tangent, and inherits pred's drive.
func (b *segmentBase) placeAfter(pred Segment) {
	dir := pred.Direction(1)
	b.frame = Frame{
		Origin:   pred.EndPoint(),
		Rotation: FromToRotation(UnitX, dir),
	}
	b.drive = pred.Drive()
}

func removeID(ids []SegmentID, id SegmentID) []SegmentID {
	for {
		i := slices.Index(ids, id)
		if i < 0 {
			return ids
		}
		ids = slices.Delete(ids, i, i+1)
	}
}

func compactIDs(ids []SegmentID, keep func(SegmentID) bool) []SegmentID {
	out := ids[:0]
	for _, id := range ids {
		if id == "" || !keep(id) || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
