package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/transport-simulator/core"

// MetricsRecorder receives per-tick statistics from the engine. Mover states
// are keyed by MoverState.String(), plus "blocked" and "at_path_end".
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	SetMoverStates(counts map[string]int)
	IncTransition(to string)
	IncDetach()
	IncAdmission(station string)
	SetStationCounts(station string, occupied bool, waiting, movingIn, movingOut int)
	IncStepErrors(n int)
}

// SimulationEngine advances the network, its movers, chains and stations in
// fixed steps.
type SimulationEngine struct {
	Network *Network

	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	movers   []*Mover
	byID     map[MoverID]*Mover
	drives   []Updater
	carriers []*ChainCarrier
	retriers []Retrier
	stations []*Station
	triggers []SpatialTrigger

	tick          int
	simTime       float64
	tickListeners []func(int)
}

// EngineOption configures a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *SimulationEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetricsRecorder attaches a recorder fed after every step.
func WithMetricsRecorder(r MetricsRecorder) EngineOption {
	return func(e *SimulationEngine) { e.metrics = r }
}

// WithTracer overrides the tracer used for step spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *SimulationEngine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewSimulationEngine creates an engine over net.
func NewSimulationEngine(net *Network, opts ...EngineOption) *SimulationEngine {
	if net == nil {
		net = NewNetwork()
	}
	e := &SimulationEngine{
		Network: net,
		log:     logging.Noop(),
		tracer:  otel.Tracer(tracerName),
		byID:    make(map[MoverID]*Mover),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterTickListener registers fn to be called after every step with the
// number of the completed tick.
func (e *SimulationEngine) RegisterTickListener(fn func(int)) {
	e.tickListeners = append(e.tickListeners, fn)
}

// AddMover registers a mover with the engine.
func (e *SimulationEngine) AddMover(m *Mover) error {
	if m == nil || m.ID() == "" {
		return ErrEmptyMoverID
	}
	if _, exists := e.byID[m.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrMoverExists, m.ID())
	}
	m.obs = e
	e.movers = append(e.movers, m)
	e.byID[m.ID()] = m
	return nil
}

// Mover looks up a registered mover.
func (e *SimulationEngine) Mover(id MoverID) (*Mover, error) {
	m, ok := e.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMoverNotFound, id)
	}
	return m, nil
}

// Movers returns the registered movers in registration order.
func (e *SimulationEngine) Movers() []*Mover {
	out := make([]*Mover, len(e.movers))
	copy(out, e.movers)
	return out
}

// AddDrive registers a drive (or anything else) that updates once per tick
// before movers integrate. Registering the same value twice is a no-op.
func (e *SimulationEngine) AddDrive(d Updater) {
	if d == nil {
		return
	}
	for _, existing := range e.drives {
		if existing == d {
			return
		}
	}
	e.drives = append(e.drives, d)
}

// AddCarrier registers a chain carrier.
func (e *SimulationEngine) AddCarrier(cc *ChainCarrier) {
	if cc != nil {
		e.carriers = append(e.carriers, cc)
	}
}

// Carriers returns the registered chain carriers.
func (e *SimulationEngine) Carriers() []*ChainCarrier {
	out := make([]*ChainCarrier, len(e.carriers))
	copy(out, e.carriers)
	return out
}

// AddRetrier registers a strategy whose held-back movers are retried every
// tick.
func (e *SimulationEngine) AddRetrier(r Retrier) {
	if r != nil {
		e.retriers = append(e.retriers, r)
	}
}

// AddStation registers a station. A nil trigger selects a ZoneTrigger.
func (e *SimulationEngine) AddStation(s *Station, trigger SpatialTrigger) {
	if s == nil {
		return
	}
	if trigger == nil {
		trigger = NewZoneTrigger(s)
	}
	s.OnAdmitted(func(st *Station, _ *Mover) {
		if e.metrics != nil {
			e.metrics.IncAdmission(st.ID())
		}
	})
	e.stations = append(e.stations, s)
	e.triggers = append(e.triggers, trigger)
}

// Stations returns the registered stations.
func (e *SimulationEngine) Stations() []*Station {
	out := make([]*Station, len(e.stations))
	copy(out, e.stations)
	return out
}

// Tick returns the number of completed steps.
func (e *SimulationEngine) Tick() int { return e.tick }

// Time returns the simulated time in seconds.
func (e *SimulationEngine) Time() float64 { return e.simTime }

// Step advances the simulation by dt seconds. Phases run in a fixed order:
// collision sensing, drive update and integration, path-end resolution with
// strategy retries and chain carriers, then zone triggers and stations.
// Structural network edits requested during the step are applied last.
func (e *SimulationEngine) Step(ctx context.Context, dt float64) error {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "SimulationEngine.Step",
		trace.WithAttributes(attribute.Int("tick", e.tick), attribute.Float64("dt", dt)))
	defer span.End()

	var errs []error
	e.Network.beginTick()

	for _, m := range e.movers {
		m.sense()
	}

	for _, d := range e.drives {
		d.Update(dt)
	}
	for _, m := range e.movers {
		m.integrate(dt)
	}

	for _, m := range e.movers {
		m.resolve()
		errs = append(errs, m.takeErrors()...)
	}
	for _, r := range e.retriers {
		r.Retry()
	}
	for _, cc := range e.carriers {
		if err := cc.Update(dt); err != nil {
			errs = append(errs, err)
		}
	}

	for _, t := range e.triggers {
		if err := t.Detect(e.movers); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range e.stations {
		if err := s.Update(dt); err != nil {
			errs = append(errs, err)
		}
	}

	if err := e.Network.endTick(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, e.detachOrphans()...)

	e.tick++
	e.simTime += dt
	e.record(time.Since(start), len(errs))

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step failed")
		e.log.Error(ctx, "simulation step failed", logging.Int("tick", e.tick), logging.Err(err))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	for _, fn := range e.tickListeners {
		fn(e.tick)
	}
	return err
}

// Run executes ticks steps of dt seconds. It stops early when ctx is done.
func (e *SimulationEngine) Run(ctx context.Context, ticks int, dt float64) error {
	var errs []error
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := e.Step(ctx, dt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// detachOrphans removes movers whose segment was deleted this tick.
func (e *SimulationEngine) detachOrphans() []error {
	var errs []error
	for _, m := range e.movers {
		if !m.OnPath() {
			continue
		}
		if _, ok := e.Network.Segment(m.SegmentID()); ok {
			continue
		}
		if err := m.RemoveFromPath(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *SimulationEngine) record(d time.Duration, nerrs int) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveTick(d)
	counts := map[string]int{
		MoverIdle.String():     0,
		MoverStarting.String(): 0,
		MoverRunning.String():  0,
		MoverStopping.String(): 0,
		MoverStopped.String():  0,
		"blocked":              0,
		"at_path_end":          0,
	}
	for _, m := range e.movers {
		counts[m.State().String()]++
		if m.Blocked() {
			counts["blocked"]++
		}
		if m.AtPathEnd() {
			counts["at_path_end"]++
		}
	}
	e.metrics.SetMoverStates(counts)
	for _, s := range e.stations {
		e.metrics.SetStationCounts(s.ID(), s.Occupant() != nil, len(s.waiting), len(s.movingIn), len(s.movingOut))
	}
	if nerrs > 0 {
		e.metrics.IncStepErrors(nerrs)
	}
}

func (e *SimulationEngine) moverTransitioned(m *Mover, from, to SegmentID) {
	if e.metrics != nil {
		e.metrics.IncTransition(string(to))
	}
}

func (e *SimulationEngine) moverDetached(m *Mover, from SegmentID) {
	if e.metrics != nil {
		e.metrics.IncDetach()
	}
	e.log.Debug(context.Background(), "mover detached",
		logging.String("mover", string(m.ID())), logging.String("segment", string(from)))
}
