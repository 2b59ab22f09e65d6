package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeRecorder struct {
	ticks       int
	states      map[string]int
	transitions map[string]int
	detaches    int
	admissions  map[string]int
	occupied    map[string]bool
	stepErrors  int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		transitions: map[string]int{},
		admissions:  map[string]int{},
		occupied:    map[string]bool{},
	}
}

func (f *fakeRecorder) ObserveTick(time.Duration)       { f.ticks++ }
func (f *fakeRecorder) SetMoverStates(c map[string]int) { f.states = c }
func (f *fakeRecorder) IncTransition(to string)         { f.transitions[to]++ }
func (f *fakeRecorder) IncDetach()                      { f.detaches++ }
func (f *fakeRecorder) IncAdmission(station string)     { f.admissions[station]++ }
func (f *fakeRecorder) IncStepErrors(n int)             { f.stepErrors += n }
func (f *fakeRecorder) SetStationCounts(s string, occupied bool, _, _, _ int) {
	f.occupied[s] = occupied
}

// lineCurveLine builds line(2) → curve(R1, 90°, cw) → line(2) at 1000 mm/s.
func lineCurveLine(t *testing.T) *Network {
	t.Helper()
	net := NewNetwork()
	l1 := MustLine("l1", 2, IdentityFrame)
	l1.SetDrive(NewRunningDrive("belt", 1000))
	net.MustAdd(l1)
	if err := net.Attach(MustCurve("c", 1, 0, 90, true, IdentityFrame), "l1"); err != nil {
		t.Fatalf("Attach curve: %v", err)
	}
	if err := net.Attach(MustLine("l2", 2, IdentityFrame), "c"); err != nil {
		t.Fatalf("Attach line: %v", err)
	}
	return net
}

func TestEngineEndToEnd(t *testing.T) {
	net := lineCurveLine(t)
	rec := newFakeRecorder()
	e := NewSimulationEngine(net, WithMetricsRecorder(rec))
	m := MustMover("m", net)
	if err := e.AddMover(m); err != nil {
		t.Fatalf("AddMover: %v", err)
	}
	if err := m.SetToPath("l1", 0); err != nil {
		t.Fatalf("SetToPath: %v", err)
	}

	const dt = 0.02
	step(t, e, dt, 100)
	if m.SegmentID() != "c" || !approx(m.Position(), 0, 1e-9) {
		t.Fatalf("after 100 ticks at %q/%v, want c/0", m.SegmentID(), m.Position())
	}
	if p := m.WorldPosition(); !p.ApproxEqual(Vec3{X: 2}, 1e-9) {
		t.Fatalf("world position %+v, want (2,0,0)", p)
	}

	step(t, e, dt, 78)
	if m.SegmentID() != "c" || !approx(m.Position(), 1.56, 1e-9) {
		t.Fatalf("after 178 ticks at %q/%v, want c/1.56", m.SegmentID(), m.Position())
	}

	step(t, e, dt, 1)
	want := 1.58 - math.Pi/2
	if m.SegmentID() != "l2" || !approx(m.Position(), want, 1e-9) {
		t.Fatalf("after 179 ticks at %q/%v, want l2/%v", m.SegmentID(), m.Position(), want)
	}
	if m.Position() >= dt {
		t.Fatalf("carried offset %v exceeds one step", m.Position())
	}
	l2, _ := net.Segment("l2")
	if !m.WorldPosition().ApproxEqual(l2.Position(want/2), 1e-9) {
		t.Fatalf("world position %+v off the path", m.WorldPosition())
	}

	if e.Tick() != 179 || !approx(e.Time(), 179*dt, 1e-9) {
		t.Fatalf("tick=%d time=%v", e.Tick(), e.Time())
	}
	if rec.ticks != 179 {
		t.Fatalf("recorded %d ticks", rec.ticks)
	}
	if diff := cmp.Diff(map[string]int{"c": 1, "l2": 1}, rec.transitions); diff != "" {
		t.Fatalf("transitions (-want +got):\n%s", diff)
	}
	if rec.states["running"] != 1 {
		t.Fatalf("mover states = %v", rec.states)
	}
}

func TestEngineRejectsDuplicateMover(t *testing.T) {
	net := lineCurveLine(t)
	e := NewSimulationEngine(net)
	if err := e.AddMover(MustMover("m", net)); err != nil {
		t.Fatalf("AddMover: %v", err)
	}
	if err := e.AddMover(MustMover("m", net)); !errors.Is(err, ErrMoverExists) {
		t.Fatalf("duplicate err = %v, want ErrMoverExists", err)
	}
	if _, err := e.Mover("x"); !errors.Is(err, ErrMoverNotFound) {
		t.Fatalf("lookup err = %v, want ErrMoverNotFound", err)
	}
	if m, err := e.Mover("m"); err != nil || m.ID() != "m" {
		t.Fatalf("lookup = %v, %v", m, err)
	}
}

func TestEngineDetachesMoversOnRemovedSegment(t *testing.T) {
	net := lineCurveLine(t)
	rec := newFakeRecorder()
	e := NewSimulationEngine(net, WithMetricsRecorder(rec))
	m := MustMover("m", net)
	_ = e.AddMover(m)
	_ = m.SetToPath("c", 0.5)

	removed := false
	e.RegisterTickListener(func(tick int) {
		if tick == 2 && !removed {
			removed = true
			if err := net.Remove("c"); err != nil {
				t.Errorf("Remove: %v", err)
			}
		}
	})
	step(t, e, 0.02, 3)

	if m.OnPath() {
		t.Fatalf("mover still on removed segment %q", m.SegmentID())
	}
	if rec.detaches != 1 {
		t.Fatalf("detaches = %d, want 1", rec.detaches)
	}
	l1, _ := net.Segment("l1")
	if len(l1.Successors()) != 0 {
		t.Fatalf("l1 still points at %v", l1.Successors())
	}
}

func TestEngineRunHonoursContext(t *testing.T) {
	net := lineCurveLine(t)
	e := NewSimulationEngine(net)
	ctx, cancel := context.WithCancel(context.Background())
	e.RegisterTickListener(func(tick int) {
		if tick == 5 {
			cancel()
		}
	})
	err := e.Run(ctx, 100, 0.02)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if e.Tick() != 5 {
		t.Fatalf("ran %d ticks, want 5", e.Tick())
	}
}

func TestEngineStationMetrics(t *testing.T) {
	rec := newFakeRecorder()
	net := NewNetwork()
	l := MustLine("track", 10, IdentityFrame)
	l.SetDrive(NewRunningDrive("belt", 1000))
	net.MustAdd(l)
	e := NewSimulationEngine(net, WithMetricsRecorder(rec))
	st := NewStation("st", Vec3{X: 5}, Vec3{X: 1, Y: 1, Z: 1}, WithHooks(GateHooks{}))
	e.AddStation(st, nil)
	m := MustMover("m", net)
	_ = e.AddMover(m)
	_ = m.SetToPath("track", 4)

	step(t, e, 0.1, 20)
	if rec.admissions["st"] != 1 || !rec.occupied["st"] {
		t.Fatalf("admissions=%v occupied=%v", rec.admissions, rec.occupied)
	}
	if rec.states["stopped"] != 1 {
		t.Fatalf("mover states = %v", rec.states)
	}
}

func TestEngineSnapshot(t *testing.T) {
	e, st := stationTrack(t, GateHooks{})
	m := place(t, e, "m", 4)
	step(t, e, 0.1, 20)

	snap := e.Snapshot()
	if snap.Tick != 20 || len(snap.Movers) != 1 || len(snap.Stations) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	ms := snap.Movers[0]
	if ms.ID != "m" || ms.Segment != "track" || ms.State != "stopped" || ms.Station != st.ID() {
		t.Fatalf("mover snapshot = %+v", ms)
	}
	if !approx(ms.Position.X, m.WorldPosition().X, eps) {
		t.Fatalf("position %v, want %v", ms.Position.X, m.WorldPosition().X)
	}
	if snap.Stations[0].Occupant != "m" {
		t.Fatalf("station snapshot = %+v", snap.Stations[0])
	}
}
