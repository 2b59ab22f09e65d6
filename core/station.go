package core

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"golang.org/x/exp/slices"
)

// StationHooks customise a station's admission and occupancy behaviour.
type StationHooks interface {
	AllowEntry(s *Station, m *Mover) bool
	OnAtPosition(s *Station, m *Mover)
	OnExit(s *Station, m *Mover)
	OnUpdate(s *Station, dt float64) error
}

// BaseHooks admits every mover and does nothing else.
type BaseHooks struct{}

func (BaseHooks) AllowEntry(*Station, *Mover) bool { return true }
func (BaseHooks) OnAtPosition(*Station, *Mover)    {}
func (BaseHooks) OnExit(*Station, *Mover)          {}
func (BaseHooks) OnUpdate(*Station, float64) error { return nil }

// GateHooks admits a mover only while the station is empty.
type GateHooks struct{ BaseHooks }

func (GateHooks) AllowEntry(s *Station, m *Mover) bool {
	return s.occupant == nil && s.waitingForStop == nil && len(s.movingIn) == 0
}

// ProcessHooks admits one mover at a time, holds it for WorkTime seconds
// once it is in position, then releases it.
type ProcessHooks struct {
	GateHooks

	WorkTime float64

	working *Mover
	elapsed float64
}

func (p *ProcessHooks) OnAtPosition(s *Station, m *Mover) {
	p.working = m
	p.elapsed = 0
	m.StationWorkStarting(s)
}

func (p *ProcessHooks) OnUpdate(s *Station, dt float64) error {
	if p.working == nil {
		return nil
	}
	p.elapsed += dt
	if p.elapsed < p.WorkTime {
		return nil
	}
	m := p.working
	p.working = nil
	m.StationWorkFinished(s)
	return s.Release()
}

// Station controls admission to a zone movers pass through or stop in.
type Station struct {
	id         string
	center     Vec3
	dimensions Vec3
	hooks      StationHooks
	log        logging.Logger

	limitToOnPath bool

	occupant       *Mover
	waitingForStop *Mover
	waiting        []*Mover
	movingIn       []*Mover
	movingOut      []*Mover

	// closest distance to the center seen so far, per mover moving in
	approach map[*Mover]float64

	errs []error

	onAdmitted, onOccupied, onReleased stationListeners
}

// StationOption configures a Station.
type StationOption func(*Station)

// WithHooks replaces the default BaseHooks.
func WithHooks(h StationHooks) StationOption {
	return func(s *Station) {
		if h != nil {
			s.hooks = h
		}
	}
}

// WithLimitToOnPath makes the station ignore movers not bound to a path.
func WithLimitToOnPath() StationOption {
	return func(s *Station) { s.limitToOnPath = true }
}

// WithStationLogger sets the station's logger.
func WithStationLogger(l logging.Logger) StationOption {
	return func(s *Station) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStation creates a station whose zone is the box of the given
// dimensions around center.
func NewStation(id string, center, dimensions Vec3, opts ...StationOption) *Station {
	s := &Station{
		id:         id,
		center:     center,
		dimensions: dimensions,
		hooks:      BaseHooks{},
		log:        logging.Noop(),
		approach:   make(map[*Mover]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logging.String("station", id))
	return s
}

func (s *Station) ID() string          { return s.id }
func (s *Station) Center() Vec3        { return s.center }
func (s *Station) Dimensions() Vec3    { return s.dimensions }
func (s *Station) Hooks() StationHooks { return s.hooks }
func (s *Station) Occupant() *Mover    { return s.occupant }

func (s *Station) Waiting() []*Mover   { return slices.Clone(s.waiting) }
func (s *Station) MovingIn() []*Mover  { return slices.Clone(s.movingIn) }
func (s *Station) MovingOut() []*Mover { return slices.Clone(s.movingOut) }

// Contains reports whether p lies inside the station's zone.
func (s *Station) Contains(p Vec3) bool {
	d := p.Sub(s.center)
	return math.Abs(d.X) <= s.dimensions.X/2 &&
		math.Abs(d.Y) <= s.dimensions.Y/2 &&
		math.Abs(d.Z) <= s.dimensions.Z/2
}

// holds reports whether m occupies the station or is stopping to do so.
func (s *Station) holds(m *Mover) bool {
	return m != nil && (s.occupant == m || s.waitingForStop == m)
}

func (s *Station) tracks(m *Mover) bool {
	return s.holds(m) ||
		slices.Contains(s.waiting, m) ||
		slices.Contains(s.movingIn, m) ||
		slices.Contains(s.movingOut, m)
}

// Enter handles a mover entering the zone.
func (s *Station) Enter(m *Mover) {
	if m == nil || (s.limitToOnPath && !m.OnPath()) || s.tracks(m) {
		return
	}
	s.waiting = append(s.waiting, m)
	if s.hooks.AllowEntry(s, m) {
		s.OpenEntry(m)
		return
	}
	s.log.Debug(context.Background(), "mover held at station entry", logging.String("mover", string(m.ID())))
	m.Stop()
}

// OpenEntry admits a waiting mover.
func (s *Station) OpenEntry(m *Mover) {
	i := slices.Index(s.waiting, m)
	if i < 0 {
		return
	}
	s.waiting = slices.Delete(s.waiting, i, i+1)
	m.Start()
	m.StationEntered(s)
	s.movingIn = append(s.movingIn, m)
	s.approach[m] = math.Inf(1)
	s.log.Debug(context.Background(), "mover admitted", logging.String("mover", string(m.ID())))
	s.onAdmitted.fire(s, m)
}

// Update re-admits waiting movers, detects arrivals and runs the hooks.
func (s *Station) Update(dt float64) error {
	for _, m := range slices.Clone(s.waiting) {
		if s.hooks.AllowEntry(s, m) {
			s.OpenEntry(m)
		}
	}
	for i := len(s.movingIn) - 1; i >= 0; i-- {
		m := s.movingIn[i]
		d := m.WorldPosition().DistanceTo(s.center)
		if d > s.approach[m] {
			s.arrive(m)
			continue
		}
		s.approach[m] = d
	}
	if err := s.hooks.OnUpdate(s, dt); err != nil {
		s.errs = append(s.errs, err)
	}
	errs := s.errs
	s.errs = nil
	return errors.Join(errs...)
}

// arrive is called once m has passed its closest approach to the center.
func (s *Station) arrive(m *Mover) {
	if i := slices.Index(s.movingIn, m); i >= 0 {
		s.movingIn = slices.Delete(s.movingIn, i, i+1)
	}
	delete(s.approach, m)
	if s.occupant != nil || s.waitingForStop != nil {
		s.errs = append(s.errs, fmt.Errorf("%w: station %q, mover %q", ErrStationOccupied, s.id, m.ID()))
		s.movingOut = append(s.movingOut, m)
		return
	}
	if m.Stopped() {
		s.atPosition(m)
		return
	}
	s.waitingForStop = m
	var remove func()
	remove = m.OnStopped(func(_ SegmentID, stopped *Mover) {
		remove()
		s.atPosition(stopped)
	})
	m.Stop()
}

func (s *Station) atPosition(m *Mover) {
	if s.waitingForStop == m {
		s.waitingForStop = nil
	}
	s.occupant = m
	s.log.Debug(context.Background(), "mover in position", logging.String("mover", string(m.ID())))
	s.onOccupied.fire(s, m)
	s.hooks.OnAtPosition(s, m)
}

// Release lets the occupant leave.
func (s *Station) Release() error {
	m := s.occupant
	if m == nil {
		return fmt.Errorf("%w: %q", ErrNoOccupant, s.id)
	}
	s.occupant = nil
	s.movingOut = append(s.movingOut, m)
	m.Start()
	s.onReleased.fire(s, m)
	return nil
}

// Exit handles a mover leaving the zone. The occupant, or a mover still
// stopping into position, must be released before it can leave.
func (s *Station) Exit(m *Mover) error {
	if s.holds(m) {
		return fmt.Errorf("%w: station %q, mover %q", ErrOccupantExited, s.id, m.ID())
	}
	if !s.tracks(m) {
		return nil
	}
	s.waiting = slices.DeleteFunc(s.waiting, func(o *Mover) bool { return o == m })
	s.movingIn = slices.DeleteFunc(s.movingIn, func(o *Mover) bool { return o == m })
	s.movingOut = slices.DeleteFunc(s.movingOut, func(o *Mover) bool { return o == m })
	delete(s.approach, m)
	s.hooks.OnExit(s, m)
	m.StationExit(s)
	return nil
}

func (s *Station) OnAdmitted(fn StationListener) func() { return s.onAdmitted.add(fn) }
func (s *Station) OnOccupied(fn StationListener) func() { return s.onOccupied.add(fn) }
func (s *Station) OnReleased(fn StationListener) func() { return s.onReleased.add(fn) }

// SpatialTrigger turns mover positions into enter/exit edges for a station.
type SpatialTrigger interface {
	Station() *Station
	Detect(movers []*Mover) error
}

// ZoneTrigger is a SpatialTrigger for the station's axis-aligned zone.
type ZoneTrigger struct {
	station *Station
	inside  map[*Mover]bool
	// exits the station refused; retried once it lets go of the mover
	refused map[*Mover]bool
}

// NewZoneTrigger returns a trigger feeding s.
func NewZoneTrigger(s *Station) *ZoneTrigger {
	return &ZoneTrigger{station: s, inside: make(map[*Mover]bool), refused: make(map[*Mover]bool)}
}

func (z *ZoneTrigger) Station() *Station { return z.station }

// Detect emits an edge for every mover whose inside/outside status changed.
// A refused exit is reported once and delivered again after the station
// releases the mover. Movers no longer passed in are forgotten.
func (z *ZoneTrigger) Detect(movers []*Mover) error {
	var errs []error
	present := make(map[*Mover]bool, len(movers))
	for _, m := range movers {
		present[m] = true
		in := m.OnPath() && z.station.Contains(m.WorldPosition())
		was := z.inside[m]
		switch {
		case in && !was:
			z.inside[m] = true
			delete(z.refused, m)
			z.station.Enter(m)
		case !in && was:
			delete(z.inside, m)
			if err := z.station.Exit(m); err != nil {
				z.refused[m] = true
				errs = append(errs, err)
			}
		case !in && z.refused[m] && !z.station.holds(m):
			delete(z.refused, m)
			if err := z.station.Exit(m); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for m := range z.inside {
		if !present[m] {
			delete(z.inside, m)
		}
	}
	for m := range z.refused {
		if !present[m] {
			delete(z.refused, m)
		}
	}
	return errors.Join(errs...)
}
