package core

import (
	"context"
	"fmt"
	"math"

	"github.com/signalsfoundry/transport-simulator/internal/logging"
)

// MoverID identifies a mover.
type MoverID string

// overshootEpsilon absorbs accumulated float error at a segment's end.
const overshootEpsilon = 1e-9

// MoverConfig holds the authored settings of a mover.
type MoverConfig struct {
	// LeavePath detaches the mover at a dead end instead of holding it there.
	// Default: true
	LeavePath bool

	// AlignWithPath rotates the body along the path tangent.
	// Default: true
	AlignWithPath bool

	// AlignUp is the up vector used when aligning.
	// Default: (0, 1, 0)
	AlignUp Vec3

	// Distance is the forward collision ray length in metres.
	// Default: 0.5
	Distance float64

	// DistanceSides is the length of the two side rays; 0 disables them.
	// Default: 0.5
	DistanceSides float64

	// AngleSide is the side ray angle in degrees.
	// Default: 30
	AngleSide float64

	// LayerMask selects what the collision rays hit.
	LayerMask uint32
}

// DefaultMoverConfig returns a MoverConfig with the usual defaults.
func DefaultMoverConfig() MoverConfig {
	return MoverConfig{
		LeavePath:     true,
		AlignWithPath: true,
		AlignUp:       Up,
		Distance:      0.5,
		DistanceSides: 0.5,
		AngleSide:     30,
		LayerMask:     1,
	}
}

// ApplyDefaults returns c with zero or invalid fields filled in. The zero
// value yields DefaultMoverConfig.
func (c MoverConfig) ApplyDefaults() MoverConfig {
	if c == (MoverConfig{}) {
		return DefaultMoverConfig()
	}
	if c.AlignUp == (Vec3{}) {
		c.AlignUp = Up
	}
	if c.Distance < 0 {
		c.Distance = 0
	}
	if c.DistanceSides < 0 {
		c.DistanceSides = 0
	}
	return c
}

// MoverState is the kinematic state derived from a mover's flags.
type MoverState int

const (
	MoverIdle MoverState = iota
	MoverStarting
	MoverRunning
	MoverStopping
	MoverStopped
)

func (s MoverState) String() string {
	switch s {
	case MoverIdle:
		return "idle"
	case MoverStarting:
		return "starting"
	case MoverRunning:
		return "running"
	case MoverStopping:
		return "stopping"
	case MoverStopped:
		return "stopped"
	default:
		return fmt.Sprintf("MoverState(%d)", int(s))
	}
}

// moverObserver receives path events for bookkeeping outside the mover.
type moverObserver interface {
	moverTransitioned(m *Mover, from, to SegmentID)
	moverDetached(m *Mover, from SegmentID)
}

// Mover travels along the segments of a Network.
type Mover struct {
	id  MoverID
	cfg MoverConfig
	net *Network
	log logging.Logger
	obs moverObserver

	seg      Segment
	position float64
	// signed distance covered by the last integrate
	advanced float64

	stopping  bool
	starting  bool
	stopped   bool
	blocked   bool
	atPathEnd bool

	drive      Drive
	body       RigidBody
	rays       RayQuery
	strategies []Strategy

	station *Station
	working *Station

	// errors raised during the current tick
	errs []error

	onEntered, onPathEnd, onExit                              moverListeners
	onStopping, onStopped, onStart, onFullyStarted, onBlocked moverListeners

	onStationEntered, onWorkStarting, onWorkFinished, onStationExit stationListeners
}

// MoverOption configures a Mover.
type MoverOption func(*Mover)

// WithMoverConfig replaces the default config.
func WithMoverConfig(cfg MoverConfig) MoverOption {
	return func(m *Mover) { m.cfg = cfg.ApplyDefaults() }
}

// WithOwnDrive gives the mover a drive that overrides the segment's drive.
func WithOwnDrive(d Drive) MoverOption {
	return func(m *Mover) { m.drive = d }
}

// WithBody sets the rigid body the mover positions.
func WithBody(b RigidBody) MoverOption {
	return func(m *Mover) {
		if b != nil {
			m.body = b
		}
	}
}

// WithRayQuery enables collision sensing.
func WithRayQuery(q RayQuery) MoverOption {
	return func(m *Mover) { m.rays = q }
}

// WithMoverStrategy appends a mover strategy.
func WithMoverStrategy(s Strategy) MoverOption {
	return func(m *Mover) { m.AddStrategy(s) }
}

// WithMoverLogger sets the mover's logger.
func WithMoverLogger(l logging.Logger) MoverOption {
	return func(m *Mover) {
		if l != nil {
			m.log = l
		}
	}
}

// NewMover creates a detached mover on net.
func NewMover(id MoverID, net *Network, opts ...MoverOption) (*Mover, error) {
	if id == "" {
		return nil, ErrEmptyMoverID
	}
	if net == nil {
		return nil, fmt.Errorf("mover %q: nil network", id)
	}
	m := &Mover{
		id:   id,
		cfg:  DefaultMoverConfig(),
		net:  net,
		log:  net.log,
		body: &BodyState{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logging.String("mover", string(id)))
	return m, nil
}

// MustMover is NewMover for fixtures.
func MustMover(id MoverID, net *Network, opts ...MoverOption) *Mover {
	m, err := NewMover(id, net, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Mover) ID() MoverID           { return m.id }
func (m *Mover) Config() MoverConfig   { return m.cfg }
func (m *Mover) Segment() Segment      { return m.seg }
func (m *Mover) OnPath() bool          { return m.seg != nil }
func (m *Mover) Position() float64     { return m.position }
func (m *Mover) AtPathEnd() bool       { return m.atPathEnd }
func (m *Mover) Blocked() bool         { return m.blocked }
func (m *Mover) Stopping() bool        { return m.stopping }
func (m *Mover) Starting() bool        { return m.starting }
func (m *Mover) Stopped() bool         { return m.stopped }
func (m *Mover) OwnDrive() Drive       { return m.drive }
func (m *Mover) Body() RigidBody       { return m.body }
func (m *Mover) Station() *Station     { return m.station }
func (m *Mover) WorkStation() *Station { return m.working }

// SegmentID returns the current segment's ID, or "" when detached.
func (m *Mover) SegmentID() SegmentID {
	if m.seg == nil {
		return ""
	}
	return m.seg.ID()
}

// AddStrategy appends a mover strategy; mover strategies run first.
func (m *Mover) AddStrategy(s Strategy) {
	if s != nil {
		m.strategies = append(m.strategies, s)
	}
}

// State derives the kinematic state. Blocked is reported separately.
func (m *Mover) State() MoverState {
	switch {
	case m.seg == nil:
		return MoverIdle
	case m.stopped:
		return MoverStopped
	case m.stopping:
		return MoverStopping
	case m.starting:
		return MoverStarting
	default:
		return MoverRunning
	}
}

// NormalizedPosition returns the offset as a fraction of the segment length.
func (m *Mover) NormalizedPosition() float64 {
	if m.seg == nil {
		return 0
	}
	l := m.seg.Length()
	if l == 0 {
		return 0
	}
	return m.position / l
}

// WorldPosition returns the path-resolved position, clamped to the segment.
func (m *Mover) WorldPosition() Vec3 {
	if m.seg == nil {
		return Vec3{}
	}
	return m.seg.Position(clamp01(m.NormalizedPosition()))
}

// Direction returns the unit travel tangent of the segment at the mover.
func (m *Mover) Direction() Vec3 {
	if m.seg == nil {
		return Vec3{}
	}
	return m.seg.Direction(clamp01(m.NormalizedPosition()))
}

// activeDrive is the own drive, else the segment's.
func (m *Mover) activeDrive() Drive {
	if m.drive != nil {
		return m.drive
	}
	if m.seg != nil {
		return m.seg.Drive()
	}
	return nil
}

// Speed returns the signed speed in mm/s the mover would travel at.
func (m *Mover) Speed() float64 {
	d := m.activeDrive()
	if d == nil {
		return 0
	}
	if d.Reverse() {
		return -d.CurrentSpeed()
	}
	return d.CurrentSpeed()
}

// SetToPath binds the mover to a segment at offset (in segment units).
func (m *Mover) SetToPath(id SegmentID, offset float64) error {
	seg, err := m.net.lookup(id)
	if err != nil {
		return err
	}
	first := m.seg == nil
	m.seg = seg
	m.position = offset
	if first {
		if m.drive != nil {
			m.drive.Accelerate()
		}
		m.log.Debug(context.Background(), "mover placed", logging.String("segment", string(id)), logging.Float64("offset", offset))
	}
	m.onEntered.fire(id, m)
	seg.base().entered.fire(id, m)
	m.updatePose()
	return nil
}

// updatePose moves the body to the path-resolved pose.
func (m *Mover) updatePose() {
	if m.seg == nil {
		return
	}
	m.body.SetPosition(m.WorldPosition())
	if m.cfg.AlignWithPath {
		m.body.SetRotation(LookRotation(m.Direction(), m.cfg.AlignUp))
	}
}

// Stop starts slowing the mover down. Without an own drive the stop
// completes immediately. Calling Stop while stopping or stopped does nothing.
func (m *Mover) Stop() {
	if m.stopping || m.stopped {
		return
	}
	m.starting = false
	m.stopping = true
	m.onStopping.fire(m.SegmentID(), m)
	if m.drive != nil {
		m.drive.Decelerate()
		return
	}
	m.fullyStopped()
}

// Start resumes a stopping or stopped mover.
func (m *Mover) Start() {
	if !m.stopping && !m.stopped {
		return
	}
	m.starting = true
	m.stopping = false
	m.stopped = false
	m.onStart.fire(m.SegmentID(), m)
	if m.drive != nil && !m.blocked {
		m.drive.Accelerate()
	}
	if m.activeDrive() == nil {
		m.fullyStarted()
	}
}

func (m *Mover) fullyStopped() {
	m.stopping = false
	m.stopped = true
	m.onStopped.fire(m.SegmentID(), m)
}

func (m *Mover) fullyStarted() {
	m.starting = false
	m.onFullyStarted.fire(m.SegmentID(), m)
}

// Block sets or clears the blocked overlay. Only edges have an effect.
func (m *Mover) Block(blocked bool) {
	switch {
	case blocked && !m.blocked:
		m.blocked = true
		m.onBlocked.fire(m.SegmentID(), m)
		if m.drive != nil {
			m.drive.Decelerate()
		}
	case !blocked && m.blocked:
		m.blocked = false
		m.onBlocked.fire(m.SegmentID(), m)
		if !m.stopped && !m.stopping && m.drive != nil {
			m.drive.Accelerate()
		}
	}
}

// sense casts the collision rays and updates the blocked overlay.
func (m *Mover) sense() {
	if m.rays == nil || m.seg == nil {
		return
	}
	origin := m.WorldPosition()
	dir := m.Direction()
	hit := m.rays.Cast(origin, dir, m.cfg.Distance, m.cfg.LayerMask)
	if !hit && m.cfg.DistanceSides > 0 {
		left := AngleAxis(-m.cfg.AngleSide, Up).Rotate(dir)
		hit = m.rays.Cast(origin, left, m.cfg.DistanceSides, m.cfg.LayerMask)
		if !hit {
			right := AngleAxis(m.cfg.AngleSide, Up).Rotate(dir)
			hit = m.rays.Cast(origin, right, m.cfg.DistanceSides, m.cfg.LayerMask)
		}
	}
	m.Block(hit)
}

// integrate advances the offset by one tick. Overshoot is resolved later by
// resolve.
func (m *Mover) integrate(dt float64) {
	m.advanced = 0
	if m.seg == nil {
		return
	}
	d := m.activeDrive()
	if d == nil {
		m.body.SetVelocity(Vec3{})
		return
	}
	speed := m.Speed()
	held := m.drive == nil && (m.stopped || m.blocked)
	if held {
		m.body.SetVelocity(Vec3{})
	} else {
		m.body.SetVelocity(m.Direction().Scale(speed / 1000))
	}
	if d.CurrentSpeed() == 0 || held {
		return
	}
	m.advanced = speed / 1000 * dt
	m.position += m.advanced
	m.updatePose()
}

// overshot reports whether the offset has left [0, length]. The end
// tolerance only applies to a mover that advanced forward this tick.
func (m *Mover) overshot() bool {
	if m.seg == nil {
		return false
	}
	length := m.seg.Length()
	if m.position > length || m.position < 0 {
		return true
	}
	return m.advanced > 0 && m.position >= length-overshootEpsilon
}

// resolve handles a segment end reached this tick and completes pending
// stop/start transitions.
func (m *Mover) resolve() {
	if m.overshot() {
		m.handlePathEnd()
	}
	if d := m.activeDrive(); d != nil {
		if m.stopping && d.IsStopped() {
			m.fullyStopped()
		}
		if m.starting && d.IsAtTargetSpeed() {
			m.fullyStarted()
		}
	}
}

func (m *Mover) handlePathEnd() {
	if m.atPathEnd {
		return
	}
	seg := m.seg
	if m.station != nil && m.station.holds(m) {
		m.errs = append(m.errs, fmt.Errorf("%w: mover %q on segment %q in station %q",
			ErrOccupantAtPathEnd, m.id, seg.ID(), m.station.ID()))
	}
	m.atPathEnd = true
	m.Stop()
	m.onPathEnd.fire(seg.ID(), m)
	seg.base().end.fire(seg.ID(), m)
	if m.seg != seg {
		// a listener moved or detached the mover
		return
	}
	if m.cfg.LeavePath {
		forward := m.position >= 0
		if (forward && len(seg.base().successors) == 0) || (!forward && len(seg.base().predecessors) == 0) {
			if err := m.RemoveFromPath(); err != nil {
				m.errs = append(m.errs, err)
			}
			return
		}
	}
	m.TryMoveNext()
}

// TryMoveNext attempts to continue onto the next segment in the travel
// direction. It reports whether the mover transitioned.
func (m *Mover) TryMoveNext() bool {
	if m.seg == nil {
		return false
	}
	cur := m.seg
	reverse := m.position < 0
	var candidates []SegmentID
	if reverse {
		candidates = cur.base().predecessors
	} else {
		candidates = cur.base().successors
	}
	list := composeStrategies(m, cur, candidates)
	if len(list) == 0 {
		return false
	}
	next, ok := m.net.Segment(list[0])
	if !ok {
		return false
	}
	offset := m.position - cur.Length()
	if reverse {
		offset = next.Length() + m.position
	}
	offset = math.Max(0, math.Min(offset, next.Length()))

	m.onExit.fire(cur.ID(), m)
	cur.base().exit.fire(cur.ID(), m)
	if err := m.SetToPath(next.ID(), offset); err != nil {
		return false
	}
	m.ReleaseFromPathEnd()
	m.log.Debug(context.Background(), "mover transitioned",
		logging.String("from", string(cur.ID())),
		logging.String("to", string(next.ID())),
		logging.Float64("offset", offset))
	if m.obs != nil {
		m.obs.moverTransitioned(m, cur.ID(), next.ID())
	}
	return true
}

// ReleaseFromPathEnd restarts a mover held at a path end.
func (m *Mover) ReleaseFromPathEnd() {
	m.Start()
	m.atPathEnd = false
}

// RemoveFromPath detaches the mover. Removing a detached mover is a no-op.
// A mover that still occupies a station cannot be removed.
func (m *Mover) RemoveFromPath() error {
	if m.seg == nil {
		return nil
	}
	if m.station != nil && m.station.holds(m) {
		return fmt.Errorf("%w: mover %q in station %q", ErrOccupantDetached, m.id, m.station.ID())
	}
	seg := m.seg
	m.Start()
	m.onExit.fire(seg.ID(), m)
	seg.base().exit.fire(seg.ID(), m)
	m.seg = nil
	m.position = 0
	m.atPathEnd = false
	m.starting = false
	m.body.SetVelocity(Vec3{})
	m.log.Debug(context.Background(), "mover left path", logging.String("segment", string(seg.ID())))
	if m.obs != nil {
		m.obs.moverDetached(m, seg.ID())
	}
	return nil
}

// StationEntered records that s admitted the mover.
func (m *Mover) StationEntered(s *Station) {
	m.station = s
	m.onStationEntered.fire(s, m)
}

// StationWorkStarting records that s started working on the mover.
func (m *Mover) StationWorkStarting(s *Station) {
	m.working = s
	m.onWorkStarting.fire(s, m)
}

// StationWorkFinished records that s finished working on the mover.
func (m *Mover) StationWorkFinished(s *Station) {
	m.onWorkFinished.fire(s, m)
	m.working = nil
}

// StationExit records that the mover left s.
func (m *Mover) StationExit(s *Station) {
	m.onStationExit.fire(s, m)
	if m.station == s {
		m.station = nil
	}
}

func (m *Mover) OnEntered(fn MoverListener) func()      { return m.onEntered.add(fn) }
func (m *Mover) OnPathEnd(fn MoverListener) func()      { return m.onPathEnd.add(fn) }
func (m *Mover) OnExit(fn MoverListener) func()         { return m.onExit.add(fn) }
func (m *Mover) OnStopping(fn MoverListener) func()     { return m.onStopping.add(fn) }
func (m *Mover) OnStopped(fn MoverListener) func()      { return m.onStopped.add(fn) }
func (m *Mover) OnStart(fn MoverListener) func()        { return m.onStart.add(fn) }
func (m *Mover) OnFullyStarted(fn MoverListener) func() { return m.onFullyStarted.add(fn) }
func (m *Mover) OnBlocked(fn MoverListener) func()      { return m.onBlocked.add(fn) }

func (m *Mover) OnStationEntered(fn StationListener) func()      { return m.onStationEntered.add(fn) }
func (m *Mover) OnStationWorkStarting(fn StationListener) func() { return m.onWorkStarting.add(fn) }
func (m *Mover) OnStationWorkFinished(fn StationListener) func() { return m.onWorkFinished.add(fn) }
func (m *Mover) OnStationExit(fn StationListener) func()         { return m.onStationExit.add(fn) }

// takeErrors returns and clears the errors raised since the last call.
func (m *Mover) takeErrors() []error {
	errs := m.errs
	m.errs = nil
	return errs
}

func clamp01(u float64) float64 {
	return math.Max(0, math.Min(1, u))
}
