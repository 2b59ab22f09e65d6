package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"golang.org/x/exp/slices"
)

// DefaultSnapTolerance is the anchor distance below which SnapByProximity
// connects two segments.
const DefaultSnapTolerance = 0.01

// Network is the arena owning every segment. Segments refer to each other by
// ID only; the network keeps the snap relation symmetric.
type Network struct {
	log logging.Logger

	segments map[SegmentID]Segment
	order    []SegmentID

	// structural edits requested during a tick are applied at its end
	inTick   bool
	deferred []func() error
}

// NetworkOption configures a Network.
type NetworkOption func(*Network)

// WithNetworkLogger sets the logger used for structural edits.
func WithNetworkLogger(l logging.Logger) NetworkOption {
	return func(n *Network) {
		if l != nil {
			n.log = l
		}
	}
}

// NewNetwork returns an empty network.
func NewNetwork(opts ...NetworkOption) *Network {
	n := &Network{
		log:      logging.Noop(),
		segments: make(map[SegmentID]Segment),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Add inserts seg into the arena.
func (n *Network) Add(seg Segment) error {
	if seg == nil || seg.ID() == "" {
		return ErrEmptySegmentID
	}
	if _, exists := n.segments[seg.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrSegmentExists, seg.ID())
	}
	n.segments[seg.ID()] = seg
	n.order = append(n.order, seg.ID())
	return nil
}

// MustAdd is Add for fixtures; it panics on error.
func (n *Network) MustAdd(segs ...Segment) {
	for _, s := range segs {
		if err := n.Add(s); err != nil {
			panic(err)
		}
	}
}

// Segment looks up a segment by ID.
func (n *Network) Segment(id SegmentID) (Segment, bool) {
	s, ok := n.segments[id]
	return s, ok
}

// Segments returns all segments in insertion order.
func (n *Network) Segments() []Segment {
	out := make([]Segment, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.segments[id])
	}
	return out
}

// Len returns the number of segments.
func (n *Network) Len() int { return len(n.order) }

func (n *Network) lookup(id SegmentID) (Segment, error) {
	s, ok := n.segments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSegmentNotFound, id)
	}
	return s, nil
}

// Snap records to as a successor of from (and from as a predecessor of to).
// Snapping twice is a no-op.
func (n *Network) Snap(from, to SegmentID) error {
	a, err := n.lookup(from)
	if err != nil {
		return err
	}
	b, err := n.lookup(to)
	if err != nil {
		return err
	}
	a.base().addSuccessor(to)
	b.base().addPredecessor(from)
	return nil
}

// Unsnap removes the connection from → to on both sides.
func (n *Network) Unsnap(from, to SegmentID) error {
	a, err := n.lookup(from)
	if err != nil {
		return err
	}
	b, err := n.lookup(to)
	if err != nil {
		return err
	}
	a.base().removeSuccessor(to)
	b.base().removePredecessor(from)
	return nil
}

// Attach places seg after predecessor: its start coincides with the
// predecessor's end and it leaves along the predecessor's end tangent. seg
// inherits the predecessor's drive and is added to the arena if needed.
func (n *Network) Attach(seg Segment, predecessor SegmentID) error {
	if seg == nil || seg.ID() == "" {
		return ErrEmptySegmentID
	}
	pred, err := n.lookup(predecessor)
	if err != nil {
		return err
	}
	if existing, ok := n.segments[seg.ID()]; ok && existing != seg {
		return fmt.Errorf("%w: %q", ErrSegmentExists, seg.ID())
	}
	seg.attachTo(pred)
	if _, ok := n.segments[seg.ID()]; !ok {
		if err := n.Add(seg); err != nil {
			return err
		}
	}
	return n.Snap(predecessor, seg.ID())
}

// Remove deletes a segment and purges it from its neighbours. Inside a tick
// the edit is deferred until the tick ends.
func (n *Network) Remove(id SegmentID) error {
	if _, err := n.lookup(id); err != nil {
		return err
	}
	if n.inTick {
		n.deferred = append(n.deferred, func() error { return n.remove(id) })
		return nil
	}
	return n.remove(id)
}

func (n *Network) remove(id SegmentID) error {
	seg, err := n.lookup(id)
	if err != nil {
		return err
	}
	b := seg.base()
	for _, p := range b.predecessors {
		if ps, ok := n.segments[p]; ok {
			ps.base().removeSuccessor(id)
		}
	}
	for _, s := range b.successors {
		if ss, ok := n.segments[s]; ok {
			ss.base().removePredecessor(id)
		}
	}
	b.predecessors = nil
	b.successors = nil
	delete(n.segments, id)
	if i := slices.Index(n.order, id); i >= 0 {
		n.order = slices.Delete(n.order, i, i+1)
	}
	n.log.Debug(context.Background(), "segment removed", logging.String("segment", string(id)))
	return nil
}

func (n *Network) exists(id SegmentID) bool {
	_, ok := n.segments[id]
	return ok
}

// ClearConnections drops dangling and duplicate neighbour references of one
// segment, and any one-sided references to it. It is safe to call at any time.
func (n *Network) ClearConnections(id SegmentID) error {
	seg, err := n.lookup(id)
	if err != nil {
		return err
	}
	b := seg.base()
	b.purge(n.exists)
	b.successors = slices.DeleteFunc(b.successors, func(s SegmentID) bool {
		return !slices.Contains(n.segments[s].base().predecessors, id)
	})
	b.predecessors = slices.DeleteFunc(b.predecessors, func(p SegmentID) bool {
		return !slices.Contains(n.segments[p].base().successors, id)
	})
	return nil
}

// ClearAllConnections runs ClearConnections on every segment.
func (n *Network) ClearAllConnections() {
	for _, id := range n.order {
		_ = n.ClearConnections(id)
	}
}

// SnapByProximity snaps every segment whose end anchor lies within tolerance
// of another segment's start anchor. A non-positive tolerance selects
// DefaultSnapTolerance. It returns the number of new connections.
func (n *Network) SnapByProximity(tolerance float64) int {
	if tolerance <= 0 {
		tolerance = DefaultSnapTolerance
	}
	tol2 := tolerance * tolerance
	added := 0
	for _, fromID := range n.order {
		from := n.segments[fromID]
		end := from.EndPoint()
		for _, toID := range n.order {
			if toID == fromID {
				continue
			}
			to := n.segments[toID]
			if end.SqrDistanceTo(to.StartPoint()) >= tol2 {
				continue
			}
			if slices.Contains(from.base().successors, toID) {
				continue
			}
			_ = n.Snap(fromID, toID)
			added++
		}
	}
	if added > 0 {
		n.log.Debug(context.Background(), "proximity snap", logging.Int("connections", added))
	}
	return added
}

// CheckSymmetry verifies B ∈ A.successors ⟺ A ∈ B.predecessors and that no
// reference dangles.
func (n *Network) CheckSymmetry() error {
	var errs []error
	for _, id := range n.order {
		b := n.segments[id].base()
		for _, s := range b.successors {
			other, ok := n.segments[s]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %q has unknown successor %q", ErrAsymmetricSnap, id, s))
				continue
			}
			if !slices.Contains(other.base().predecessors, id) {
				errs = append(errs, fmt.Errorf("%w: %q → %q missing predecessor entry", ErrAsymmetricSnap, id, s))
			}
		}
		for _, p := range b.predecessors {
			other, ok := n.segments[p]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %q has unknown predecessor %q", ErrAsymmetricSnap, id, p))
				continue
			}
			if !slices.Contains(other.base().successors, id) {
				errs = append(errs, fmt.Errorf("%w: %q ← %q missing successor entry", ErrAsymmetricSnap, id, p))
			}
		}
	}
	return errors.Join(errs...)
}

// Draw sends every segment's polyline to r. A nil renderer is ignored.
func (n *Network) Draw(r LineRenderer) {
	if r == nil {
		return
	}
	for _, id := range n.order {
		s := n.segments[id]
		r.DrawPolyline(id, s.Polyline(), s.Thickness())
	}
}

func (n *Network) beginTick() { n.inTick = true }

// endTick applies deferred structural edits. A segment removed twice in one
// tick is not an error.
func (n *Network) endTick() error {
	n.inTick = false
	pending := n.deferred
	n.deferred = nil
	var errs []error
	for _, fn := range pending {
		if err := fn(); err != nil && !errors.Is(err, ErrSegmentNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
