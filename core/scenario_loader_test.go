// core/scenario_loader_test.go
package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/model"
)

const testLayout = `
{
  "name": "test-loop",
  "snap_tolerance": 0.001,
  "drives": [
    { "id": "belt", "speed": 1000 },
    { "id": "chain", "speed": 500 },
    { "id": "own", "speed": 250, "running": false }
  ],
  "segments": [
    { "id": "l1", "kind": "line", "length": 2, "drive": "belt" },
    { "id": "c",  "kind": "curve", "attach_to": "l1", "radius": 1, "degrees": 90 },
    { "id": "l2", "kind": "line", "attach_to": "c", "length": 2, "strategy": "round_robin" },

    { "id": "q1", "kind": "curve", "origin": { "x": 0, "y": 0, "z": 10 }, "radius": 1, "degrees": 90, "drive": "chain" },
    { "id": "q2", "kind": "curve", "attach_to": "q1", "radius": 1, "degrees": 90 },
    { "id": "q3", "kind": "curve", "attach_to": "q2", "radius": 1, "degrees": 90 },
    { "id": "q4", "kind": "curve", "attach_to": "q3", "radius": 1, "degrees": 90 }
  ],
  "chains": [
    { "id": "loop", "start": "q1", "carriers": [0, 0.5] }
  ],
  "stations": [
    { "id": "press", "kind": "process", "center": { "x": 1, "y": 0, "z": 0 },
      "dimensions": { "x": 0.5, "y": 0.5, "z": 0.5 }, "work_time": 0.2 }
  ],
  "movers": [
    { "id": "m1", "segment": "l1", "offset": 0.1 },
    { "segment": "c", "drive": "own", "leave_path": false }
  ]
}
`

func TestBuildScenarioFromLayout(t *testing.T) {
	layout, err := LoadLayout(strings.NewReader(testLayout))
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	sc, err := BuildScenario(layout, logging.Noop())
	if err != nil {
		t.Fatalf("BuildScenario: %v", err)
	}

	if sc.Name != "test-loop" || sc.Network.Len() != 7 {
		t.Fatalf("name=%q segments=%d", sc.Name, sc.Network.Len())
	}
	if err := sc.Network.CheckSymmetry(); err != nil {
		t.Fatalf("CheckSymmetry: %v", err)
	}

	c, _ := sc.Network.Segment("c")
	if c.Drive() != sc.Drives["belt"] {
		t.Fatalf("curve did not inherit the belt drive")
	}
	l2, _ := sc.Network.Segment("l2")
	if _, ok := l2.PathStrategy().(*RoundRobin); !ok {
		t.Fatalf("l2 strategy = %T", l2.PathStrategy())
	}

	loop := sc.Chains["loop"]
	if loop == nil {
		t.Fatalf("chain not built")
	}
	if diff := cmp.Diff([]SegmentID{"q1", "q2", "q3", "q4"}, loop.Segments()); diff != "" {
		t.Fatalf("chain segments (-want +got):\n%s", diff)
	}
	if loop.Drive() != sc.Drives["chain"] {
		t.Fatalf("chain drive not taken from its start segment")
	}
	if got := len(sc.Engine.Carriers()); got != 2 {
		t.Fatalf("carriers = %d, want 2", got)
	}

	if len(sc.Movers) != 2 {
		t.Fatalf("movers = %d", len(sc.Movers))
	}
	if sc.Movers[0].ID() != "m1" || sc.Movers[0].SegmentID() != "l1" {
		t.Fatalf("m1 = %q on %q", sc.Movers[0].ID(), sc.Movers[0].SegmentID())
	}
	gen := sc.Movers[1]
	if _, err := uuid.Parse(string(gen.ID())); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", gen.ID(), err)
	}
	if gen.Config().LeavePath || gen.OwnDrive() != sc.Drives["own"] {
		t.Fatalf("generated mover config = %+v own=%v", gen.Config(), gen.OwnDrive())
	}

	if len(sc.Engine.Stations()) != 1 {
		t.Fatalf("stations not registered with the engine")
	}
	if _, ok := sc.Stations["press"].Hooks().(*ProcessHooks); !ok {
		t.Fatalf("press hooks = %T", sc.Stations["press"].Hooks())
	}

	if err := sc.Engine.Run(context.Background(), 10, 0.02); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestLoadLayoutRejectsBadJSON(t *testing.T) {
	if _, err := LoadLayout(strings.NewReader("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestBuildScenarioErrors(t *testing.T) {
	cases := []struct {
		name   string
		layout model.Layout
		want   error
	}{
		{
			name: "unknown drive",
			layout: model.Layout{Segments: []model.SegmentDefinition{
				{ID: "a", Kind: model.SegmentLine, Length: 1, Drive: "nope"},
			}},
			want: ErrDriveNotFound,
		},
		{
			name: "unknown kind",
			layout: model.Layout{Segments: []model.SegmentDefinition{
				{ID: "a", Kind: "spiral", Length: 1},
			}},
			want: ErrUnknownSegmentKind,
		},
		{
			name: "bad curve",
			layout: model.Layout{Segments: []model.SegmentDefinition{
				{ID: "a", Kind: model.SegmentCurve, Radius: 0, Degrees: 90},
			}},
			want: ErrInvalidRadius,
		},
		{
			name: "attach to missing",
			layout: model.Layout{Segments: []model.SegmentDefinition{
				{ID: "a", Kind: model.SegmentLine, Length: 1, AttachTo: "ghost"},
			}},
			want: ErrSegmentNotFound,
		},
		{
			name: "open chain",
			layout: model.Layout{
				Segments: []model.SegmentDefinition{{ID: "a", Kind: model.SegmentLine, Length: 1}},
				Chains:   []model.ChainDefinition{{ID: "k", Start: "a"}},
			},
			want: ErrChainNotClosed,
		},
		{
			name: "unknown station kind",
			layout: model.Layout{
				Stations: []model.StationDefinition{{ID: "s", Kind: "teleport"}},
			},
			want: ErrUnknownStationKind,
		},
		{
			name: "mover on missing segment",
			layout: model.Layout{
				Movers: []model.MoverDefinition{{ID: "m", Segment: "ghost"}},
			},
			want: ErrSegmentNotFound,
		},
		{
			name: "bad strategy",
			layout: model.Layout{Segments: []model.SegmentDefinition{
				{ID: "a", Kind: model.SegmentLine, Length: 1, Strategy: "teleport"},
			}},
			want: ErrUnknownStrategy,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildScenario(&tc.layout, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("prefer: b , a")
	if err != nil {
		t.Fatalf("ParseStrategy: %v", err)
	}
	got := s.SelectNext(nil, []SegmentID{"a", "b", "c"})
	if diff := cmp.Diff([]SegmentID{"b", "a", "c"}, got); diff != "" {
		t.Fatalf("prefer (-want +got):\n%s", diff)
	}
	if _, err := ParseStrategy("random:7"); err != nil {
		t.Fatalf("random:7: %v", err)
	}
	if _, err := ParseStrategy("random:x"); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("random:x err = %v", err)
	}
}
