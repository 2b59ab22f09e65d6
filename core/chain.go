package core

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// chainScale converts segment units (m) into the chain's length unit (mm),
// the unit drive speeds are given in.
const chainScale = 1000

// Chain maps a closed cycle of segments onto a single normalized address
// space u ∈ [0,1].
type Chain struct {
	net   *Network
	start SegmentID
	drive Drive

	segments   []SegmentID
	cumulative []float64
	total      float64

	// broken holds the error from the last failed rebuild.
	broken error
}

// NewChain builds a chain starting at start and calculates its length.
func NewChain(net *Network, start SegmentID) (*Chain, error) {
	c := &Chain{net: net, start: start}
	if err := c.CalculateLength(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustChain is NewChain for fixtures.
func MustChain(net *Network, start SegmentID) *Chain {
	c, err := NewChain(net, start)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Chain) Start() SegmentID { return c.start }

// Segments returns the visited cycle, starting at Start and ending with the
// segment that precedes it.
func (c *Chain) Segments() []SegmentID { return slices.Clone(c.segments) }

// Cumulative returns the running length fraction after each segment.
func (c *Chain) Cumulative() []float64 { return slices.Clone(c.cumulative) }

// TotalLength returns the chain length in mm.
func (c *Chain) TotalLength() float64 { return c.total }

// Drive returns the chain drive; by default the start segment's drive.
func (c *Chain) Drive() Drive {
	if c.drive != nil {
		return c.drive
	}
	if s, ok := c.net.Segment(c.start); ok {
		return s.Drive()
	}
	return nil
}

func (c *Chain) SetDrive(d Drive) { c.drive = d }

// CalculateLength walks successors from the start segment until the walk
// reaches the segment whose successors contain the start, then rebuilds the
// cumulative fractions.
func (c *Chain) CalculateLength() error {
	cur, ok := c.net.Segment(c.start)
	if !ok {
		return fmt.Errorf("%w: chain start %q", ErrSegmentNotFound, c.start)
	}
	var segs []SegmentID
	seen := make(map[SegmentID]bool)
	for {
		b := cur.base()
		if slices.Contains(b.successors, c.start) {
			segs = append(segs, cur.ID())
			break
		}
		if seen[cur.ID()] {
			return fmt.Errorf("%w: %q revisits %q", ErrChainNotClosed, c.start, cur.ID())
		}
		seen[cur.ID()] = true
		segs = append(segs, cur.ID())
		if len(b.successors) == 0 {
			return fmt.Errorf("%w: %q dead-ends at %q", ErrChainNotClosed, c.start, cur.ID())
		}
		next, ok := c.net.Segment(b.successors[0])
		if !ok {
			return fmt.Errorf("%w: %q references missing %q", ErrChainNotClosed, cur.ID(), b.successors[0])
		}
		cur = next
	}

	lengths := make([]float64, len(segs))
	total := 0.0
	for i, id := range segs {
		s, _ := c.net.Segment(id)
		lengths[i] = s.Length() * chainScale
		total += lengths[i]
	}
	cum := make([]float64, len(segs))
	run := 0.0
	for i, l := range lengths {
		run += l
		cum[i] = run / total
	}
	cum[len(cum)-1] = 1

	c.segments = segs
	c.cumulative = cum
	c.total = total
	c.broken = nil
	return nil
}

// Refresh rebuilds the cycle when one of its segments has left the
// network. It returns an error only on the tick the chain breaks; while
// broken, Broken reports the cause and carriers hold still.
func (c *Chain) Refresh() error {
	if c.broken == nil && c.intact() {
		return nil
	}
	wasBroken := c.broken != nil
	if err := c.CalculateLength(); err != nil {
		c.segments, c.cumulative, c.total = nil, nil, 0
		c.broken = err
		if wasBroken {
			return nil
		}
		return err
	}
	return nil
}

// Broken returns the error that broke the chain, or nil.
func (c *Chain) Broken() error { return c.broken }

func (c *Chain) intact() bool {
	for _, id := range c.segments {
		if _, ok := c.net.Segment(id); !ok {
			return false
		}
	}
	return true
}

// Resolve maps u onto a segment index and a segment-local normalized
// position. u is clamped to [0,1]. A u that falls on an interior boundary
// resolves to the end of the earlier segment. A broken chain resolves to
// (0, 0).
func (c *Chain) Resolve(u float64) (int, float64) {
	if len(c.cumulative) == 0 {
		return 0, 0
	}
	u = clamp01(u)
	i, _ := slices.BinarySearch(c.cumulative, u)
	if i >= len(c.cumulative) {
		i = len(c.cumulative) - 1
	}
	prev := 0.0
	if i > 0 {
		prev = c.cumulative[i-1]
	}
	s, ok := c.net.Segment(c.segments[i])
	if !ok || s.Length() == 0 {
		return i, 0
	}
	local := (c.total * (u - prev) / chainScale) / s.Length()
	return i, local
}

func (c *Chain) segmentAt(u float64) (Segment, float64, bool) {
	if len(c.segments) == 0 {
		return nil, 0, false
	}
	i, local := c.Resolve(u)
	s, ok := c.net.Segment(c.segments[i])
	return s, local, ok
}

// Position returns the world position at chain offset u, or the zero
// vector when the chain is broken.
func (c *Chain) Position(u float64) Vec3 {
	s, local, ok := c.segmentAt(u)
	if !ok {
		return Vec3{}
	}
	return s.Position(local)
}

// Direction returns the unit tangent at chain offset u.
func (c *Chain) Direction(u float64) Vec3 {
	s, local, ok := c.segmentAt(u)
	if !ok {
		return Vec3{}
	}
	return s.Direction(local)
}

// ChainCarrier is a body fixed to a chain at a normalized offset and moved
// around it by the chain's drive.
type ChainCarrier struct {
	id     string
	chain  *Chain
	offset float64
	body   RigidBody
	align  bool
}

// NewChainCarrier places a carrier at offset u on chain.
func NewChainCarrier(id string, chain *Chain, u float64, body RigidBody) *ChainCarrier {
	if body == nil {
		body = &BodyState{}
	}
	cc := &ChainCarrier{id: id, chain: chain, offset: wrap01(u), body: body, align: true}
	cc.updatePose()
	return cc
}

func (cc *ChainCarrier) ID() string { return cc.id }

func (cc *ChainCarrier) Chain() *Chain { return cc.chain }

func (cc *ChainCarrier) Offset() float64 { return cc.offset }

func (cc *ChainCarrier) Body() RigidBody { return cc.body }

// SetAlign controls whether the body is rotated along the chain tangent.
func (cc *ChainCarrier) SetAlign(a bool) { cc.align = a }

// Update advances the carrier by one tick. A chain that lost a segment is
// rebuilt first; if it cannot be, the carrier holds and the error is
// returned once.
func (cc *ChainCarrier) Update(dt float64) error {
	if err := cc.chain.Refresh(); err != nil {
		cc.body.SetVelocity(Vec3{})
		return fmt.Errorf("carrier %q: %w", cc.id, err)
	}
	d := cc.chain.Drive()
	if d == nil || cc.chain.total == 0 {
		cc.body.SetVelocity(Vec3{})
		return nil
	}
	speed := d.CurrentSpeed()
	if d.Reverse() {
		speed = -speed
	}
	cc.offset = wrap01(cc.offset + speed*dt/cc.chain.total)
	cc.updatePose()
	cc.body.SetVelocity(cc.chain.Direction(cc.offset).Scale(speed / chainScale))
	return nil
}

func (cc *ChainCarrier) updatePose() {
	cc.body.SetPosition(cc.chain.Position(cc.offset))
	if cc.align {
		cc.body.SetRotation(LookRotation(cc.chain.Direction(cc.offset), Up))
	}
}

// wrap01 maps u into [0,1).
func wrap01(u float64) float64 {
	u = math.Mod(u, 1)
	if u < 0 {
		u++
	}
	if u >= 1 {
		u = 0
	}
	return u
}
