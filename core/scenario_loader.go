// core/scenario_loader.go
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/model"
)

// Scenario is a layout built into live simulation objects.
type Scenario struct {
	Name      string
	Network   *Network
	Engine    *SimulationEngine
	Drives    map[string]*SimDrive
	Chains    map[string]*Chain
	Stations  map[string]*Station
	Junctions map[string]*JunctionLock
	Movers    []*Mover
}

// LoadLayout decodes a JSON layout from r.
func LoadLayout(r io.Reader) (*model.Layout, error) {
	var layout model.Layout
	dec := json.NewDecoder(r)
	if err := dec.Decode(&layout); err != nil {
		return nil, fmt.Errorf("LoadLayout: decode failed: %w", err)
	}
	return &layout, nil
}

// BuildScenario turns a layout into a network and an engine ready to step.
// Segments are built in order, so AttachTo must name an earlier segment.
func BuildScenario(layout *model.Layout, log logging.Logger, engineOpts ...EngineOption) (*Scenario, error) {
	if layout == nil {
		return nil, fmt.Errorf("BuildScenario: layout is nil")
	}
	if log == nil {
		log = logging.Noop()
	}
	log = log.With(logging.String("layout", layout.Name))

	net := NewNetwork(WithNetworkLogger(log))
	opts := append([]EngineOption{WithLogger(log)}, engineOpts...)
	sc := &Scenario{
		Name:      layout.Name,
		Network:   net,
		Engine:    NewSimulationEngine(net, opts...),
		Drives:    make(map[string]*SimDrive),
		Chains:    make(map[string]*Chain),
		Stations:  make(map[string]*Station),
		Junctions: make(map[string]*JunctionLock),
	}

	// 1) Drives
	for _, d := range layout.Drives {
		if d.ID == "" {
			return nil, fmt.Errorf("BuildScenario: drive with empty id")
		}
		drive := NewSimDrive(d.ID, d.Speed, d.Acceleration)
		drive.SetReverse(d.Reverse)
		if d.Running == nil || *d.Running {
			drive.Accelerate()
		}
		sc.Drives[d.ID] = drive
		sc.Engine.AddDrive(drive)
	}

	// 2) Segments
	for _, def := range layout.Segments {
		if err := sc.buildSegment(def); err != nil {
			return nil, err
		}
	}
	for _, def := range layout.Segments {
		for _, succ := range def.Successors {
			if err := net.Snap(SegmentID(def.ID), SegmentID(succ)); err != nil {
				return nil, fmt.Errorf("BuildScenario: snap %q → %q: %w", def.ID, succ, err)
			}
		}
	}
	if layout.SnapTolerance > 0 {
		net.SnapByProximity(layout.SnapTolerance)
	}
	if err := net.CheckSymmetry(); err != nil {
		return nil, err
	}

	// 3) Junctions
	for _, j := range layout.Junctions {
		guarded := make([]SegmentID, 0, len(j.Segments))
		for _, id := range j.Segments {
			guarded = append(guarded, SegmentID(id))
		}
		lock := NewJunctionLock(guarded...)
		for _, entry := range j.Entries {
			seg, err := net.lookup(SegmentID(entry))
			if err != nil {
				return nil, fmt.Errorf("BuildScenario: junction %q: %w", j.ID, err)
			}
			seg.AddStrategy(lock)
		}
		sc.Junctions[j.ID] = lock
		sc.Engine.AddRetrier(lock)
	}

	// 4) Chains
	for _, c := range layout.Chains {
		if _, exists := sc.Chains[c.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrChainExists, c.ID)
		}
		chain, err := NewChain(net, SegmentID(c.Start))
		if err != nil {
			return nil, err
		}
		if c.Drive != "" {
			d, err := sc.drive(c.Drive)
			if err != nil {
				return nil, err
			}
			chain.SetDrive(d)
		}
		for i, u := range c.Carriers {
			sc.Engine.AddCarrier(NewChainCarrier(fmt.Sprintf("%s-%d", c.ID, i), chain, u, nil))
		}
		sc.Chains[c.ID] = chain
	}

	// 5) Stations
	for _, s := range layout.Stations {
		if _, exists := sc.Stations[s.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrStationExists, s.ID)
		}
		hooks, err := stationHooks(s)
		if err != nil {
			return nil, err
		}
		opts := []StationOption{WithHooks(hooks), WithStationLogger(log)}
		if s.LimitToOnPath {
			opts = append(opts, WithLimitToOnPath())
		}
		st := NewStation(s.ID, vec(s.Center), vec(s.Dimensions), opts...)
		sc.Stations[s.ID] = st
		sc.Engine.AddStation(st, nil)
	}

	// 6) Movers
	for _, def := range layout.Movers {
		m, err := sc.buildMover(def, log)
		if err != nil {
			return nil, err
		}
		sc.Movers = append(sc.Movers, m)
	}

	log.Info(context.Background(), "layout built",
		logging.Int("segments", net.Len()),
		logging.Int("movers", len(sc.Movers)),
		logging.Int("stations", len(sc.Stations)),
		logging.Int("chains", len(sc.Chains)))
	return sc, nil
}

func (sc *Scenario) drive(id string) (*SimDrive, error) {
	d, ok := sc.Drives[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriveNotFound, id)
	}
	return d, nil
}

func (sc *Scenario) buildSegment(def model.SegmentDefinition) error {
	id := SegmentID(def.ID)
	frame := Frame{Origin: vec(def.Origin), Rotation: AngleAxis(def.Heading, Up)}

	var seg Segment
	switch strings.ToLower(string(def.Kind)) {
	case string(model.SegmentLine), "":
		l, err := NewLine(id, def.Length, frame)
		if err != nil {
			return err
		}
		seg = l
	case string(model.SegmentCurve):
		cw := def.Clockwise == nil || *def.Clockwise
		c, err := NewCurve(id, def.Radius, def.StartAngle, def.Degrees, cw, frame)
		if err != nil {
			return err
		}
		seg = c
	default:
		return fmt.Errorf("%w: %q on segment %q", ErrUnknownSegmentKind, def.Kind, def.ID)
	}

	if def.AttachTo != "" {
		if err := sc.Network.Attach(seg, SegmentID(def.AttachTo)); err != nil {
			return fmt.Errorf("BuildScenario: attach %q to %q: %w", def.ID, def.AttachTo, err)
		}
		if c, ok := seg.(*Curve); ok && def.Clockwise != nil {
			c.SetClockwise(*def.Clockwise)
		}
	} else if err := sc.Network.Add(seg); err != nil {
		return err
	}

	if def.Drive != "" {
		d, err := sc.drive(def.Drive)
		if err != nil {
			return fmt.Errorf("segment %q: %w", def.ID, err)
		}
		seg.SetDrive(d)
	}
	if def.Thickness > 0 {
		seg.SetThickness(def.Thickness)
	}
	if def.Strategy != "" {
		s, err := ParseStrategy(def.Strategy)
		if err != nil {
			return fmt.Errorf("segment %q: %w", def.ID, err)
		}
		seg.SetPathStrategy(s)
	}
	return nil
}

func (sc *Scenario) buildMover(def model.MoverDefinition, log logging.Logger) (*Mover, error) {
	id := def.ID
	if id == "" {
		id = uuid.NewString()
	}
	cfg := DefaultMoverConfig()
	if def.LeavePath != nil {
		cfg.LeavePath = *def.LeavePath
	}
	opts := []MoverOption{WithMoverConfig(cfg), WithMoverLogger(log)}
	if def.Drive != "" {
		d, err := sc.drive(def.Drive)
		if err != nil {
			return nil, fmt.Errorf("mover %q: %w", id, err)
		}
		opts = append(opts, WithOwnDrive(d))
	}
	if len(def.Prefer) > 0 {
		ids := make([]SegmentID, 0, len(def.Prefer))
		for _, p := range def.Prefer {
			ids = append(ids, SegmentID(p))
		}
		opts = append(opts, WithMoverStrategy(PreferSegments(ids...)))
	}
	m, err := NewMover(MoverID(id), sc.Network, opts...)
	if err != nil {
		return nil, err
	}
	if err := sc.Engine.AddMover(m); err != nil {
		return nil, err
	}
	if err := m.SetToPath(SegmentID(def.Segment), def.Offset); err != nil {
		return nil, fmt.Errorf("mover %q: %w", id, err)
	}
	return m, nil
}

// ParseStrategy builds a shared path strategy from its layout notation:
// "round_robin", "random" or "random:<seed>", "prefer:<id>,<id>".
func ParseStrategy(def string) (Strategy, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(def), ":")
	switch strings.ToLower(name) {
	case "round_robin", "roundrobin":
		return &RoundRobin{}, nil
	case "random":
		seed := int64(1)
		if arg != "" {
			v, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrUnknownStrategy, def, err)
			}
			seed = v
		}
		return NewRandomBranch(seed), nil
	case "prefer":
		var ids []SegmentID
		for _, p := range strings.Split(arg, ",") {
			if p = strings.TrimSpace(p); p != "" {
				ids = append(ids, SegmentID(p))
			}
		}
		return PreferSegments(ids...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, def)
	}
}

func stationHooks(def model.StationDefinition) (StationHooks, error) {
	switch strings.ToLower(string(def.Kind)) {
	case string(model.StationHold), "":
		return BaseHooks{}, nil
	case string(model.StationGate):
		return GateHooks{}, nil
	case string(model.StationProcess):
		return &ProcessHooks{WorkTime: def.WorkTime}, nil
	default:
		return nil, fmt.Errorf("%w: %q on station %q", ErrUnknownStationKind, def.Kind, def.ID)
	}
}

func vec(p model.Point) Vec3 { return Vec3{X: p.X, Y: p.Y, Z: p.Z} }

// Point converts a Vec3 to its model form.
func Point(v Vec3) model.Point { return model.Point{X: v.X, Y: v.Y, Z: v.Z} }
