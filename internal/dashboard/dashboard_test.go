package dashboard

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/transport-simulator/kb"
	"github.com/signalsfoundry/transport-simulator/model"
)

func TestMoverRows(t *testing.T) {
	rows := MoverRows([]model.MoverSnapshot{
		{ID: "m1", Segment: "a", Offset: 0.12345, Speed: 1000, State: "running"},
		{ID: "m2", Offset: 2, State: "stopped", Blocked: true, AtPathEnd: true, Station: "press"},
	})
	want := [][]string{
		moverHeader,
		{"m1", "a", "0.123", "1000", "running", "-", "-"},
		{"m2", "-", "2.000", "0", "stopped", "blocked,end", "press"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("MoverRows (-want +got):\n%s", diff)
	}
}

func TestStationRows(t *testing.T) {
	rows := StationRows([]model.StationSnapshot{
		{ID: "press", Occupant: "m1", Waiting: []string{"m2", "m3"}, MovingOut: []string{"m0"}},
		{ID: "gate"},
	})
	want := [][]string{
		stationHeader,
		{"press", "m1", "m2,m3", "-", "m0"},
		{"gate", "-", "-", "-", "-"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("StationRows (-want +got):\n%s", diff)
	}
}

func TestRowsAlwaysCarryHeader(t *testing.T) {
	if rows := MoverRows(nil); len(rows) != 1 {
		t.Fatalf("MoverRows(nil) = %v, want header only", rows)
	}
	if rows := StationRows(nil); len(rows) != 1 {
		t.Fatalf("StationRows(nil) = %v, want header only", rows)
	}
}

func TestStatusLine(t *testing.T) {
	if got := StatusLine(model.Snapshot{}, false); !strings.Contains(got, "waiting") {
		t.Fatalf("StatusLine before publish = %q", got)
	}
	got := StatusLine(model.Snapshot{
		Tick: 12,
		Time: 0.24,
		Movers: []model.MoverSnapshot{
			{ID: "m1", Segment: "a", Blocked: true},
			{ID: "m2"},
		},
		Carriers: []model.CarrierSnapshot{{ID: "loop-0"}},
	}, true)
	want := "tick 12  t=0.24s  movers 2 (1 on path, 1 blocked)  carriers 1  [q] quit"
	if got != want {
		t.Fatalf("StatusLine = %q, want %q", got, want)
	}
}

func TestDashboardRefreshReadsStore(t *testing.T) {
	store := kb.NewKnowledgeBase()
	d := New(store)
	if len(d.movers.Rows) != 1 || !strings.Contains(d.status.Text, "waiting") {
		t.Fatalf("initial dashboard rows=%d status=%q", len(d.movers.Rows), d.status.Text)
	}

	store.Publish(model.Snapshot{
		Tick:     3,
		Movers:   []model.MoverSnapshot{{ID: "b"}, {ID: "a"}},
		Stations: []model.StationSnapshot{{ID: "press"}},
	})
	d.refresh()

	if len(d.movers.Rows) != 3 || d.movers.Rows[1][0] != "a" {
		t.Fatalf("mover rows = %v", d.movers.Rows)
	}
	if len(d.stations.Rows) != 2 {
		t.Fatalf("station rows = %v", d.stations.Rows)
	}
	if !strings.HasPrefix(d.status.Text, "tick 3") {
		t.Fatalf("status = %q", d.status.Text)
	}
}
